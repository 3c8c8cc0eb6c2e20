// Package useragent classifies the User-Agent strings recorded in access-log
// entries into a browser and operating system name. The patterns use PCRE
// because several of them rely on lookahead assertions Go's regexp cannot
// express.
package useragent

import (
	"strings"
	"sync"

	"go.elara.ws/pcre"
)

// Info is the classified form of one User-Agent header.
type Info struct {
	Browser string
	OS      string
	Bot     bool
}

type pattern struct {
	regex string
	name  string
}

var browserPatterns = []pattern{
	{`Edg(?:e|A|iOS)?/`, "Edge"},
	{`OPR/|Opera`, "Opera"},
	{`SamsungBrowser/`, "Samsung Internet"},
	{`Firefox/(?!.*Seamonkey)`, "Firefox"},
	{`Chrome/(?!.*(?:Chromium|Edg))`, "Chrome"},
	{`Safari/(?!.*(?:Chrome|Chromium))`, "Safari"},
	{`MSIE |Trident/`, "Internet Explorer"},
}

var osPatterns = []pattern{
	{`Windows NT`, "Windows"},
	{`iPhone OS|iPad; CPU OS`, "iOS"},
	{`Mac OS X`, "macOS"},
	{`Android`, "Android"},
	{`CrOS`, "ChromeOS"},
	{`Linux`, "Linux"},
}

var botPattern = `(?i)bot|crawler|spider|curl/|wget/|python-requests|Go-http-client`

type regexCache struct {
	mu       sync.Mutex
	compiled map[string]*pcre.Regexp
}

var cache = &regexCache{compiled: make(map[string]*pcre.Regexp)}

func (c *regexCache) match(patternStr, input string) bool {
	c.mu.Lock()
	regex, ok := c.compiled[patternStr]
	if !ok {
		var err error
		regex, err = pcre.Compile(patternStr)
		if err != nil {
			c.mu.Unlock()
			return false
		}
		c.compiled[patternStr] = regex
	}
	c.mu.Unlock()
	return regex.MatchString(input)
}

// Parse classifies a raw User-Agent header. Unrecognized agents come back
// with empty fields rather than an error.
func Parse(ua string) Info {
	info := Info{}
	if strings.TrimSpace(ua) == "" {
		return info
	}

	if cache.match(botPattern, ua) {
		info.Bot = true
	}

	for _, p := range browserPatterns {
		if cache.match(p.regex, ua) {
			info.Browser = p.name
			break
		}
	}
	for _, p := range osPatterns {
		if cache.match(p.regex, ua) {
			info.OS = p.name
			break
		}
	}
	return info
}

// Label renders the classification as "Browser / OS" for list views.
func (i Info) Label() string {
	switch {
	case i.Browser != "" && i.OS != "":
		return i.Browser + " / " + i.OS
	case i.Browser != "":
		return i.Browser
	case i.OS != "":
		return i.OS
	default:
		return "Unknown"
	}
}
