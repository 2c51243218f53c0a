package shell

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beitak/beitak/internal/apperr"
)

// errAborted is returned when input ends in the middle of a form.
var errAborted = errors.New("input closed")

// prompter reads answers line by line. An empty line means "no answer".
type prompter struct {
	sc    *bufio.Scanner
	print func(format string, args ...any)
}

func (p *prompter) line(label string) (string, error) {
	p.print("%s: ", label)
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", err
		}
		return "", errAborted
	}
	return strings.TrimSpace(p.sc.Text()), nil
}

func (p *prompter) text(label string) (*string, error) {
	v, err := p.line(label)
	if err != nil || v == "" {
		return nil, err
	}
	return &v, nil
}

func (p *prompter) number(field, label string) (*int, error) {
	v, err := p.line(label)
	if err != nil || v == "" {
		return nil, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, apperr.Invalid(field, "%s must be a whole number", label)
	}
	return &n, nil
}

// choice offers options and accepts either a value or its 1-based index.
// Unknown values are passed through so validation can name the field.
func (p *prompter) choice(label string, options []string) (*string, error) {
	v, err := p.line(fmt.Sprintf("%s [%s]", label, strings.Join(options, "/")))
	if err != nil || v == "" {
		return nil, err
	}
	if i, err := strconv.Atoi(v); err == nil && i >= 1 && i <= len(options) {
		return &options[i-1], nil
	}
	v = strings.ToLower(v)
	return &v, nil
}

func (p *prompter) yesNo(field, label string) (*bool, error) {
	v, err := p.line(label + " [y/n]")
	if err != nil || v == "" {
		return nil, err
	}
	switch strings.ToLower(v) {
	case "y", "yes":
		return boolPtr(true), nil
	case "n", "no":
		return boolPtr(false), nil
	}
	return nil, apperr.Invalid(field, "please answer y or n")
}

func (p *prompter) list(label string) ([]string, error) {
	v, err := p.line(label)
	if err != nil || v == "" {
		return nil, err
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

func boolPtr(b bool) *bool { return &b }

// enum converts a prompted string to one of the models' option types.
func enum[T ~string](v *string) *T {
	if v == nil {
		return nil
	}
	t := T(*v)
	return &t
}

func options[T ~string](vals ...T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}
