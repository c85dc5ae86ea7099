package consent

import "strings"

// Match finds the template a procedure requires, or nil when the procedure
// needs no consent. Matching is case-insensitive: a substring relation in
// either direction between procedure name and template title wins first; when
// no title matches, each template's procedure keywords are tested as
// substrings of the procedure name. The first hit in input order wins.
func Match(procedureName string, templates []Template) *Template {
	procedure := strings.ToLower(strings.TrimSpace(procedureName))
	if procedure == "" {
		return nil
	}

	for i := range templates {
		title := strings.ToLower(strings.TrimSpace(templates[i].Title))
		if title == "" {
			continue
		}
		if strings.Contains(procedure, title) || strings.Contains(title, procedure) {
			return &templates[i]
		}
	}

	for i := range templates {
		for _, kw := range templates[i].ProcedureKeywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if strings.Contains(procedure, kw) {
				return &templates[i]
			}
		}
	}

	return nil
}
