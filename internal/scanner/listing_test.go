package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, EntryDirectory, Classify("Season 01", true))
	assert.Equal(t, EntryMedia, Classify("Movie (1999).mkv", false))
	assert.Equal(t, EntryMedia, Classify("UPPER.MP4", false))
	assert.Equal(t, EntryAncillary, Classify("movie.srt", false))
	assert.Equal(t, EntryAncillary, Classify("poster.jpg", false))
	assert.Equal(t, EntryAncillary, Classify("random.bin", false))
}

func TestListingHashIsOrderIndependent(t *testing.T) {
	a := []ListingEntry{
		{Name: "a.mkv", Size: 1, ModTime: 100},
		{Name: "b.mkv", Size: 2, ModTime: 200},
	}
	b := []ListingEntry{
		{Name: "b.mkv", Size: 2, ModTime: 200},
		{Name: "a.mkv", Size: 1, ModTime: 100},
	}
	assert.Equal(t, ListingHash(a), ListingHash(b))
}

func TestListingHashReflectsChanges(t *testing.T) {
	base := []ListingEntry{{Name: "a.mkv", Size: 1, ModTime: 100}}

	touched := []ListingEntry{{Name: "a.mkv", Size: 1, ModTime: 101}}
	assert.NotEqual(t, ListingHash(base), ListingHash(touched))

	grown := []ListingEntry{{Name: "a.mkv", Size: 2, ModTime: 100}}
	assert.NotEqual(t, ListingHash(base), ListingHash(grown))

	renamed := []ListingEntry{{Name: "b.mkv", Size: 1, ModTime: 100}}
	assert.NotEqual(t, ListingHash(base), ListingHash(renamed))
}
