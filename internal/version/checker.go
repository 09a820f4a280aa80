package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// releaseEndpoint is a var so tests can point the lookup at a local server.
var releaseEndpoint = "https://api.github.com/repos/studiowebux/probecli/releases/latest"

const lookupTimeout = 5 * time.Second

// Version is a parsed semantic version. Pre-release and build metadata
// are stripped before parsing and play no part in comparison.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Parse reads strings like "1.2.3", "v0.4", or "2.0.0-rc1". Missing
// components default to zero.
func Parse(s string) (Version, error) {
	trimmed := strings.TrimPrefix(s, "v")
	if idx := strings.IndexAny(trimmed, "-+"); idx != -1 {
		trimmed = trimmed[:idx]
	}

	var v Version
	fields := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, part := range strings.SplitN(trimmed, ".", 3) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
		*fields[i] = n
	}
	return v, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1 if v is older than o, 0 if equal, 1 if newer.
func (v Version) Compare(o Version) int {
	pairs := [3][2]int{
		{v.Major, o.Major},
		{v.Minor, o.Minor},
		{v.Patch, o.Patch},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// Update is the outcome of an update check.
type Update struct {
	Current Version
	Latest  Version
	URL     string
}

// Newer reports whether the published release is ahead of the running build.
func (u Update) Newer() bool {
	return u.Current.Compare(u.Latest) < 0
}

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// CheckForUpdate looks up the latest published release and compares it
// against the running version.
func CheckForUpdate(ctx context.Context, current string) (Update, error) {
	cur, err := Parse(current)
	if err != nil {
		return Update{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseEndpoint, nil)
	if err != nil {
		return Update{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "probecli/"+cur.String())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Update{}, fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Update{}, fmt.Errorf("release lookup returned status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return Update{}, fmt.Errorf("failed to decode release: %w", err)
	}

	latest, err := Parse(rel.TagName)
	if err != nil {
		return Update{}, fmt.Errorf("unexpected release tag %q", rel.TagName)
	}

	return Update{Current: cur, Latest: latest, URL: rel.HTMLURL}, nil
}
