package respond

import (
	"fmt"
	"strings"

	"github.com/ordervox/ordervox/internal/order"
)

// consolidateClarifications folds all pending clarifications of a batch
// into one question. A single pending ambiguity keeps its own question;
// several are rewritten into one sentence per ambiguity so the customer
// hears everything at once.
func consolidateClarifications(results []*order.Result) string {
	type pending struct {
		item     string
		options  []string
		question string
	}
	var all []pending
	for _, r := range results {
		if r.ResponseType != order.ResponseClarification {
			continue
		}
		p := pending{
			item:     stringData(r.Data, "ambiguous_item"),
			question: stringData(r.Data, "clarification_question"),
		}
		p.options = stringsData(r.Data, "suggested_options")
		all = append(all, p)
	}

	switch len(all) {
	case 0:
		return ""
	case 1:
		if all[0].question != "" {
			return all[0].question
		}
	}

	questions := make([]string, 0, len(all))
	for _, p := range all {
		switch {
		case len(p.options) > 0:
			questions = append(questions, fmt.Sprintf("Which %s did you want? We have %s.", p.item, joinOr(p.options)))
		case p.question != "":
			questions = append(questions, p.question)
		default:
			questions = append(questions, fmt.Sprintf("Which %s did you want?", p.item))
		}
	}
	return strings.Join(questions, " ")
}

// joinOr renders options for speech: "Big Mac, Quarter Pounder, or McDouble".
func joinOr(options []string) string {
	switch len(options) {
	case 0:
		return ""
	case 1:
		return options[0]
	case 2:
		return options[0] + " or " + options[1]
	}
	return strings.Join(options[:len(options)-1], ", ") + ", or " + options[len(options)-1]
}

func stringData(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// stringsData accepts both []string and JSON-decoded []any.
func stringsData(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
