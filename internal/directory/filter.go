package directory

import "github.com/storedsafe/ldapsync/internal/config"

// FilterValues applies a field's match and replace rules to a raw
// multi-valued attribute.
//
// With no match pattern every input value passes through. With one, each
// value is matched against the pattern anchored at the start of the value;
// non-matching values are dropped. A pattern with capture groups keeps
// only the first group's text, a pattern without keeps the whole matched
// substring (trailing unmatched content is discarded either way).
//
// Replace rules then run in config order over every surviving value, each
// substitution applied globally, each rule seeing the previous rule's
// output. Relative value order is preserved.
func FilterValues(values []string, field *config.Field) []string {
	matched := values
	if re := field.MatchRegexp(); re != nil {
		matched = make([]string, 0, len(values))
		for _, value := range values {
			groups := re.FindStringSubmatch(value)
			if groups == nil {
				continue
			}
			if len(groups) > 1 {
				matched = append(matched, groups[1])
			} else {
				matched = append(matched, groups[0])
			}
		}
	}

	rules := field.ReplaceRules()
	if len(rules) == 0 {
		return matched
	}

	replaced := make([]string, len(matched))
	copy(replaced, matched)
	for _, rule := range rules {
		for i, value := range replaced {
			replaced[i] = rule.Search.ReplaceAllString(value, rule.Repl)
		}
	}
	return replaced
}
