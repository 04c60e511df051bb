package gemini

// AskSystemInstructionHeader is prepended to the configured system
// instruction. It expects the bot's first name and username.
const AskSystemInstructionHeader = `You are %s (@%s), a chat bot answering a question a user sent with the ask command. Reply with the answer only, as plain text suitable for a chat message. Keep it short unless the question needs detail.

`
