// Package listener owns the interactive console: one readline instance for
// prompts, with asynchronous mission updates printed above the input line.
package listener

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// ErrClosed is returned by GetInput once the operator hits Ctrl+C or Ctrl+D.
var ErrClosed = errors.New("console closed")

var rl *readline.Instance
var mu sync.Mutex
var holdAsync bool
var heldLines []string

// Init opens the console. words feed tab completion of the first word typed.
func Init(prompt string, words ...string) error {
	items := make([]readline.PrefixCompleterInterface, 0, len(words))
	for _, w := range words {
		items = append(items, readline.PcItem(w))
	}
	inst, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return err
	}
	mu.Lock()
	rl = inst
	mu.Unlock()
	return nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if rl != nil {
		_ = rl.Close()
		rl = nil
	}
}

func SetPrompt(p string) {
	mu.Lock()
	defer mu.Unlock()
	if rl != nil {
		rl.SetPrompt(p)
	}
}

func BeginInteractive() {
	mu.Lock()
	holdAsync = true
	mu.Unlock()
}

// EndInteractive flushes the lines held back while a question was open.
func EndInteractive() {
	mu.Lock()
	defer mu.Unlock()
	holdAsync = false
	for _, s := range heldLines {
		printAboveUnlocked(s)
	}
	heldLines = nil
}

func printAboveUnlocked(s string) {
	if rl == nil {
		fmt.Println(s)
		return
	}
	_, _ = rl.Write([]byte("\r\n" + s + "\r\n"))
	rl.Refresh()
}

func PrintAbove(s string) {
	mu.Lock()
	defer mu.Unlock()
	printAboveUnlocked(s)
}

// GetInput reads one trimmed line.
func GetInput() (string, error) {
	mu.Lock()
	inst := rl
	mu.Unlock()
	if inst == nil {
		return "", ErrClosed
	}
	line, err := inst.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", ErrClosed
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func GetConfirmation(prompt string) string {
	mu.Lock()
	inst := rl
	if inst == nil {
		mu.Unlock()
		return ""
	}
	old := inst.Config.Prompt
	inst.SetPrompt(prompt)
	mu.Unlock()

	line, err := inst.Readline()
	if err != nil {
		line = ""
	}
	ans := strings.TrimSpace(strings.ToLower(line))

	mu.Lock()
	inst.SetPrompt(old)
	mu.Unlock()
	return ans
}

// AsyncPrintln prints s above the prompt, or holds it while a question is
// open.
func AsyncPrintln(s string) {
	mu.Lock()
	defer mu.Unlock()
	if holdAsync {
		heldLines = append(heldLines, s)
		return
	}
	printAboveUnlocked(s)
}

func AskYesNo(question string) bool {
	BeginInteractive()
	defer EndInteractive()

	PrintAbove(question + " [y/n]")

	for {
		ans := GetConfirmation("> ")
		if ans == "y" || ans == "yes" {
			return true
		}
		if ans == "n" || ans == "no" || ans == "" {
			return false
		}
		PrintAbove("Please answer y/n.")
	}
}

// SplitCommand separates the first word of line from the rest.
func SplitCommand(line string) (verb, arg string) {
	line = strings.TrimSpace(line)
	verb, arg, _ = strings.Cut(line, " ")
	return strings.ToLower(verb), strings.TrimSpace(arg)
}
