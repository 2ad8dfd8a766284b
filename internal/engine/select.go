package engine

import "strings"

// Selector routes a link to the downloader that handles it. Any link
// mentioning "spotify" goes to the Spotify tool, everything else to the
// generic extractor.
type Selector struct {
	Spotify Adapter
	Generic Adapter
}

func (s Selector) Select(link string) Adapter {
	if IsSpotifyLink(link) {
		return s.Spotify
	}
	return s.Generic
}

func (s Selector) Adapters() []Adapter {
	return []Adapter{s.Spotify, s.Generic}
}

func IsSpotifyLink(link string) bool {
	return strings.Contains(link, "spotify")
}
