package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/foodcsp/internal/compiler"
	"github.com/roach88/foodcsp/internal/render"
)

// ErrSkipped is returned when the user leaves an optional prompt blank.
var ErrSkipped = errors.New("skipped")

// Prompter asks line-oriented questions. It answers override prompts, so
// it can be passed wherever an engine.Confirmer is expected.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// readLine returns the next trimmed line, or io.EOF once input ends.
func (p *Prompter) readLine() (string, error) {
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Choose asks for one of options by number or by name.
func (p *Prompter) Choose(prompt string, options []string, allowSkip bool) (string, error) {
	for {
		p.writeOptions(prompt, options, allowSkip)
		line, err := p.readLine()
		if err != nil {
			return "", err
		}
		if line == "" {
			if allowSkip {
				return "", ErrSkipped
			}
			continue
		}
		if choice, ok := pick(line, options); ok {
			return choice, nil
		}
		fmt.Fprintln(p.out, "Invalid choice, try again.")
	}
}

// ChooseMany asks for a comma separated list of options. Duplicates are
// dropped; at least one option is required unless the prompt is skipped.
func (p *Prompter) ChooseMany(prompt string, options []string, allowSkip bool) ([]string, error) {
	for {
		p.writeOptions(prompt+" (comma separated)", options, allowSkip)
		line, err := p.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			if allowSkip {
				return nil, ErrSkipped
			}
			continue
		}

		var (
			chosen []string
			bad    bool
		)
		seen := make(map[string]bool)
		for _, part := range strings.Split(line, ",") {
			choice, ok := pick(strings.TrimSpace(part), options)
			if !ok {
				bad = true
				break
			}
			if !seen[choice] {
				seen[choice] = true
				chosen = append(chosen, choice)
			}
		}
		if !bad && len(chosen) > 0 {
			return chosen, nil
		}
		fmt.Fprintln(p.out, "Invalid choice, try again.")
	}
}

// Text asks for free text.
func (p *Prompter) Text(prompt string, allowSkip bool) (string, error) {
	for {
		fmt.Fprintf(p.out, "%s\n> ", prompt)
		line, err := p.readLine()
		if err != nil {
			return "", err
		}
		if line != "" {
			return line, nil
		}
		if allowSkip {
			return "", ErrSkipped
		}
	}
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	for {
		fmt.Fprintf(p.out, "%s [y/n]\n> ", prompt)
		line, err := p.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

// ConfirmOverride asks whether a conflicting default may be removed.
func (p *Prompter) ConfirmOverride(_ context.Context, r compiler.ConflictReport) (bool, error) {
	return p.Confirm(render.OverridePrompt(r.Existing))
}

func (p *Prompter) writeOptions(prompt string, options []string, allowSkip bool) {
	fmt.Fprintln(p.out, prompt)
	for i, o := range options {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, o)
	}
	if allowSkip {
		fmt.Fprint(p.out, "(blank to skip) ")
	}
	fmt.Fprint(p.out, "> ")
}

// pick matches an answer against options by 1-based number or
// case-insensitive name.
func pick(answer string, options []string) (string, bool) {
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		return "", false
	}
	for _, o := range options {
		if strings.EqualFold(o, answer) {
			return o, true
		}
	}
	return "", false
}
