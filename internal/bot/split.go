package bot

import "unicode/utf8"

// MaxMessageSize is the longest text Telegram accepts in one message.
const MaxMessageSize = 4096

// SplitMessage cuts text into consecutive chunks of at most size
// characters. Joining the chunks yields text unchanged.
func SplitMessage(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = MaxMessageSize
	}
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	var chunks []string
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}
