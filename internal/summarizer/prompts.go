package summarizer

// SummaryPrompt is the instruction sent with a group's messages.
// The format string expects the group name, the window start and end dates,
// and the formatted messages.
const SummaryPrompt = `You are an AI assistant tasked with summarizing Telegram group chat messages.

Please create a comprehensive summary of the following messages from the Telegram group "%s" for the period from %s to %s.

The summary should:
1. Identify the main topics and themes discussed
2. Highlight key information and important announcements
3. Note any significant decisions or conclusions reached
4. Mention active participants and their main contributions
5. Organize information in a clear, structured format
6. Be comprehensive yet concise

Messages are formatted as: [YYYY-MM-DD HH:MM:SS] sender: text

Here are the messages to summarize:

%s

Please provide only the summary without any introductory text or explanations about the summarization process.
`
