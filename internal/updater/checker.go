// Package updater checks whether the latest GitHub release differs from
// the version currently running.
package updater

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fluxdl/internal/dlerror"
)

// Release is the subset of a GitHub release the update check cares
// about.
type Release struct {
	TagName string `json:"tag_name"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

// CheckForUpdate queries GitHub for the latest release of owner/repo.
// It returns a nil Release (not an error) when the latest tag equals
// currentVersion, ignoring a leading "v". Any other tag is returned;
// versions are not ordered, so an older tag is returned as well.
func CheckForUpdate(currentVersion, owner, repo string) (*Release, error) {
	if owner == "" || repo == "" {
		return nil, dlerror.New(dlerror.Config, "owner and repo are required")
	}

	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", owner, repo)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, dlerror.Wrap(dlerror.Network, "failed to build update check request", err)
	}
	req.Header.Set("User-Agent", "fluxdl-updater")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, dlerror.Wrap(dlerror.Network, "update check request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, dlerror.New(dlerror.Network, fmt.Sprintf("update check returned status %d", resp.StatusCode))
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, dlerror.Wrap(dlerror.Parse, "failed to decode release response", err)
	}

	current := strings.TrimPrefix(currentVersion, "v")
	latest := strings.TrimPrefix(release.TagName, "v")
	if current == latest {
		return nil, nil
	}
	return &release, nil
}
