// mmfmt renders chat message or topic text the way the chat client does.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"mm/internal/content"
	"mm/internal/markup"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Println("Usage: mmfmt [-topic] [text...]   (reads stdin when no text is given)")
		os.Exit(0)
	}

	args := os.Args[1:]
	topic := len(args) > 0 && args[0] == "-topic"
	if topic {
		args = args[1:]
	}

	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Printf("Error reading input: %v\n", err)
			os.Exit(1)
		}
		text = strings.TrimRight(string(data), "\n")
	}

	out, err := render(text, topic)
	if err != nil {
		fmt.Printf("Error rendering: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out)
}

func render(text string, topic bool) (string, error) {
	if topic {
		return content.RenderTopic(text)
	}

	message := markup.El("div", markup.Attrs{"class": "message"})
	if stripped, ok := content.ActionText(text); ok {
		text = stripped
		message.AddClass("action")
	}
	message.Append(markup.FromSegments(content.Format(text))...)
	return message.Render(), nil
}
