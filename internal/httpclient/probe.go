package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"fluxdl/internal/dlerror"
)

// FileDetails is the result of probing a URL for its size and name.
type FileDetails struct {
	Filename string
	Size     int64
}

// Probe resolves a URL's size and filename: HEAD first, falling back
// to a zero-length ranged GET if HEAD is rejected or non-2xx. A
// missing Content-Length is a Config error — the engine refuses to
// register a download with unknown size.
func Probe(client *http.Client, rawURL string) (*FileDetails, error) {
	req, err := http.NewRequest(http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, dlerror.Wrap(dlerror.Parse, "invalid URL", err)
	}
	req.Header.Set("User-Agent", GenericUserAgent)

	resp, err := client.Do(req)
	if err != nil || resp.StatusCode >= 300 {
		if resp != nil {
			resp.Body.Close()
		}
		resp, err = rangeProbe(client, rawURL)
		if err != nil {
			return nil, dlerror.Wrap(dlerror.Network, "probe request failed", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, dlerror.New(dlerror.Network, fmt.Sprintf("server returned status %d", resp.StatusCode))
	}

	size := resp.ContentLength
	if size <= 0 {
		return nil, dlerror.New(dlerror.Config, "server did not report a usable Content-Length")
	}

	return &FileDetails{
		Filename: ResolveFilename(resp.Header.Get("Content-Disposition"), rawURL),
		Size:     size,
	}, nil
}

func rangeProbe(client *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", GenericUserAgent)
	req.Header.Set("Range", "bytes=0-0")
	return client.Do(req)
}

var filenameDirective = regexp.MustCompile(`filename\*?=`)

// ResolveFilename implements the spec's precedence: Content-Disposition
// filename, else the last non-empty URL path segment, else
// "download.dat". The result is always filesystem-sanitized.
func ResolveFilename(contentDisposition, rawURL string) string {
	name := ""

	if contentDisposition != "" {
		if loc := filenameDirective.FindStringIndex(contentDisposition); loc != nil {
			part := contentDisposition[loc[1]:]
			if i := strings.IndexByte(part, ';'); i >= 0 {
				part = part[:i]
			}
			part = strings.TrimSpace(part)
			part = strings.Trim(part, `"'`)
			if part != "" {
				name = part
			}
		}
	}
	if name == "" {
		if parsed, err := url.Parse(rawURL); err == nil {
			segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
			if last := segments[len(segments)-1]; last != "" {
				name = last
			}
		}
	}
	if name == "" {
		name = "download.dat"
	}

	return Sanitize(name)
}

var unsafeFilenameChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)

// Sanitize strips characters that are unsafe in a filesystem path
// component on any major OS, replacing them with "_".
func Sanitize(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	name = strings.Trim(name, ".")
	if name == "" {
		return "download.dat"
	}
	return name
}
