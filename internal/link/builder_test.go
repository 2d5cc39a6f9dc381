package link

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
)

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(Config{WebBaseURL: "https://app.fixzit.co/", DeepLinkScheme: "fixzit"})

	tests := []struct {
		name     string
		et       EntityType
		id       string
		subPath  string
		wantWeb  string
		wantDeep string
	}{
		{
			name:     "work order",
			et:       EntityWorkOrder,
			id:       "WO-1",
			wantWeb:  "https://app.fixzit.co/fm/work-orders/WO-1",
			wantDeep: "fixzit://work-orders/WO-1",
		},
		{
			name:     "approval",
			et:       EntityApproval,
			id:       "AP-9",
			wantWeb:  "https://app.fixzit.co/fm/approvals/AP-9",
			wantDeep: "fixzit://approvals/AP-9",
		},
		{
			name:     "sub path is trimmed",
			et:       EntityWorkOrder,
			id:       "WO-1",
			subPath:  "/comments/",
			wantWeb:  "https://app.fixzit.co/fm/work-orders/WO-1/comments",
			wantDeep: "fixzit://work-orders/WO-1/comments",
		},
		{
			name:     "id is path escaped",
			et:       EntityWorkOrder,
			id:       "a/b c",
			wantWeb:  "https://app.fixzit.co/fm/work-orders/a%2Fb%20c",
			wantDeep: "fixzit://work-orders/a%2Fb%20c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Build(tt.et, tt.id, tt.subPath)

			require.NoError(t, err)
			assert.Equal(t, tt.wantWeb, got.WebURL)
			assert.Equal(t, tt.wantDeep, got.DeepLink)
		})
	}
}

func TestBuilder_Build_MissingID(t *testing.T) {
	b := NewBuilder(Config{})

	for _, id := range []string{"", "  "} {
		_, err := b.Build(EntityWorkOrder, id, "")
		assert.True(t, errors.Is(err, entity.ErrMissingID))
	}
}

func TestBuilder_Build_UnknownEntity(t *testing.T) {
	b := NewBuilder(Config{})

	_, err := b.Build(EntityType("invoice"), "1", "")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestDeepLinkPrefix(t *testing.T) {
	tests := []struct {
		scheme string
		want   string
	}{
		{"fixzit", "fixzit://"},
		{"fixzit:", "fixzit://"},
		{"fixzit://", "fixzit://"},
		{" fixzit:// ", "fixzit://"},
		{"fixzit://app", "fixzit://app/"},
		{"fixzit://app/", "fixzit://app/"},
		{"fixzit://app//", "fixzit://app/"},
	}

	for _, tt := range tests {
		t.Run(tt.scheme, func(t *testing.T) {
			assert.Equal(t, tt.want, deepLinkPrefix(tt.scheme))
		})
	}
}

func TestBuilder_SchemeOnlyAndHostLinksStayDistinct(t *testing.T) {
	schemeOnly := NewBuilder(Config{DeepLinkScheme: "fixzit://"})
	withHost := NewBuilder(Config{DeepLinkScheme: "fixzit://app"})

	a, err := schemeOnly.Build(EntityWorkOrder, "WO-1", "")
	require.NoError(t, err)
	b, err := withHost.Build(EntityWorkOrder, "WO-1", "")
	require.NoError(t, err)

	assert.Equal(t, "fixzit://work-orders/WO-1", a.DeepLink)
	assert.Equal(t, "fixzit://app/work-orders/WO-1", b.DeepLink)
}

func TestNewBuilder_Defaults(t *testing.T) {
	b := NewBuilder(Config{})

	got, err := b.Build(EntityApproval, "1", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultWebBaseURL+"/fm/approvals/1", got.WebURL)
	assert.Equal(t, "fixzit://approvals/1", got.DeepLink)

	// the base host is trusted without being listed
	assert.Equal(t, got.WebURL, b.Sanitizer().Sanitize(got.WebURL))
}
