package referrers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcesFileLoads(t *testing.T) {
	index, err := loadSources(sourcesFile)
	require.NoError(t, err)
	assert.NotEmpty(t, index)

	_, err = loadSources([]byte("search:\n  A: [a.com]\nsocial:\n  B: [a.com]\n"))
	assert.ErrorContains(t, err, "a.com")
}

func TestLookup(t *testing.T) {
	tests := []struct {
		host    string
		name    string
		channel string
	}{
		{"google.com", "Google", ChannelSearch},
		{"www.google.de", "Google", ChannelSearch},
		{"mail.google.com", "Gmail", ChannelEmail},
		{"news.ycombinator.com", "Hacker News", ChannelCommunity},
		{"m.facebook.com", "Facebook", ChannelSocial},
		{"mobile.twitter.com", "X/Twitter", ChannelSocial},
		{"com.google.android.gm", "Gmail", ChannelEmail},
		{"GITHUB.COM", "GitHub", ChannelCommunity},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			src, ok := Lookup(tt.host)
			require.True(t, ok)
			assert.Equal(t, tt.name, src.Name)
			assert.Equal(t, tt.channel, src.Channel)
		})
	}

	_, ok := Lookup("example.com")
	assert.False(t, ok)
	_, ok = Lookup("")
	assert.False(t, ok)
}

func TestFriendlyName(t *testing.T) {
	assert.Equal(t, "Hacker News", FriendlyName("news.ycombinator.com"))
	assert.Equal(t, "Example.com", FriendlyName("example.com"))
	assert.Equal(t, "Example.com", FriendlyName("www.example.com"))
	assert.Equal(t, "", FriendlyName(""))
}

func TestChannel(t *testing.T) {
	assert.Equal(t, ChannelDirect, Channel(""))
	assert.Equal(t, ChannelSearch, Channel("duckduckgo.com"))
	assert.Equal(t, ChannelOther, Channel("someblog.dev"))
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		referrer string
		expected string
	}{
		{"https://www.google.com/search?q=go", "google.com"},
		{"http://news.ycombinator.com/item?id=1", "news.ycombinator.com"},
		{"https://Example.COM:8443/path", "example.com"},
		{"github.com/neverdecel", "github.com"},
		{"android-app://com.google.android.gm", "com.google.android.gm"},
		{"", ""},
		{"   ", ""},
		{"http://[::1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.referrer, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractDomain(tt.referrer))
		})
	}
}

func TestIsSelfReferral(t *testing.T) {
	assert.True(t, IsSelfReferral("neverdecel.com", "neverdecel"))
	assert.True(t, IsSelfReferral("blog.neverdecel.dev", "neverdecel"))
	assert.True(t, IsSelfReferral("NEVERDECEL.com", "neverdecel"))
	assert.False(t, IsSelfReferral("google.com", "neverdecel"))
	assert.False(t, IsSelfReferral("", "neverdecel"))
	assert.False(t, IsSelfReferral("google.com", ""))
}
