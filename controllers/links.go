package controllers

import (
	"net/url"

	"github.com/gin-gonic/gin"
)

// Link is a hypermedia link rendered under "_links"
type Link struct {
	Href string `json:"href"`
}

type Links map[string]Link

// absoluteURL builds an absolute URL on the request's host for path and query
func absoluteURL(c *gin.Context, path string, query url.Values) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: path}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func tickerQuery(ticker string) url.Values {
	return url.Values{"ticker": []string{ticker}}
}
