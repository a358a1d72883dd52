// Package ident generates ids and human readable default names.
package ident

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

var (
	adjectives = []string{
		"amber", "bold", "brisk", "calm", "clever", "crisp", "dusky", "eager",
		"fuzzy", "gentle", "hidden", "lively", "lucky", "misty", "nimble", "quiet",
		"rapid", "rustic", "silent", "sunny", "swift", "tidy", "vivid", "witty",
	}
	nouns = []string{
		"badger", "cedar", "comet", "delta", "falcon", "fern", "harbor", "heron",
		"lantern", "maple", "meadow", "otter", "pebble", "quartz", "raven", "river",
		"sparrow", "summit", "thistle", "tundra", "valley", "willow", "yarrow", "zephyr",
	}
)

func NewID() string {
	return uuid.NewString()
}

// NewName returns an adjective-noun pair with a short numeric suffix.
func NewName() string {
	return fmt.Sprintf("%s-%s-%02d",
		adjectives[rand.IntN(len(adjectives))],
		nouns[rand.IntN(len(nouns))],
		rand.IntN(100),
	)
}
