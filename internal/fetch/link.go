package fetch

import "strings"

// NextFromLinkHeader extracts the rel="next" URL from an RFC 5988 Link
// header, the pagination style the LMS uses. Returns "" when there is no
// next page.
func NextFromLinkHeader(header string) string {
	if header == "" {
		return ""
	}

	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(part, ";")
		if len(sections) < 2 {
			continue
		}

		target := strings.Trim(strings.TrimSpace(sections[0]), "<>")
		for _, param := range sections[1:] {
			param = strings.TrimSpace(param)
			if param == `rel="next"` || param == "rel=next" {
				return target
			}
		}
	}

	return ""
}
