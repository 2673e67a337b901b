package presigned

import "net/url"

// QueryParam is the query string parameter carrying a read token.
const QueryParam = "signature"

// SignedURL appends token to an object URL.
func SignedURL(objectURL, token string) string {
	return objectURL + "?" + url.Values{QueryParam: []string{token}}.Encode()
}
