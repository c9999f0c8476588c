// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/brightsend/wablast-backend/internal/model"
)

// RenderTemplate substitutes {placeholder} variables in a message body.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "<unknown>"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// ContactVars builds the substitution set for a recipient.
func ContactVars(name, phone string) map[string]string {
	first := name
	if i := strings.IndexByte(name, ' '); i > 0 {
		first = name[:i]
	}
	return map[string]string{
		"name":       name,
		"first_name": first,
		"phone":      phone,
	}
}

// FullContactVars extends ContactVars with the contact-book fields used by
// the personalized preview.
func FullContactVars(c *model.Contact) map[string]string {
	vars := ContactVars(c.Name, c.Phone)
	vars["company"] = c.Company
	vars["country"] = c.Country
	return vars
}
