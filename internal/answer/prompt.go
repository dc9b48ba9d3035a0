package answer

// systemPrompt is the standing instruction for grounded answers. The model
// must answer only from the supplied passages and say so when they do not
// cover the question, rather than inventing an answer.
const systemPrompt = `You are a helpful assistant answering questions based on prior chat messages.

You will be given numbered context passages retrieved from chat history, followed by a question. Answer the question using only the information in the passages. Cite which messages support your answer where it helps (for example "as alice mentioned"). If the passages do not contain enough information to answer, say so plainly instead of guessing.

Keep answers concise and directly useful.`

// promptTemplate lays out one generation request: the retrieved context block
// followed by the user's question.
const promptTemplate = `Context from chat history:
%s

Question: %s`
