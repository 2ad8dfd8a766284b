package engine

import (
	"regexp"
	"strconv"
	"strings"
)

var collectionPattern = regexp.MustCompile(`Found (\d+) songs in (.+?) \(`)

// ParseCollection extracts the album or playlist name from a downloader
// progress line such as "Found 12 songs in Blue Train (Album)".
func ParseCollection(line string) (name string, songs int, ok bool) {
	match := collectionPattern.FindStringSubmatch(line)
	if match == nil {
		return "", 0, false
	}
	name = strings.TrimSpace(match[2])
	if name == "" {
		return "", 0, false
	}
	songs, _ = strconv.Atoi(match[1])
	return name, songs, true
}
