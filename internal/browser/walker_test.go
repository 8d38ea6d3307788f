package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

func credentialsFixture() monitor.Credentials {
	return monitor.Credentials{Username: "watcher", Password: "secret"}
}

func TestCategoryURL(t *testing.T) {
	s := New(Config{BaseURL: "https://example.test/contents/index.htm"}, nil)
	assert.Equal(t,
		"https://example.test/contents/index.htm?category=CG002",
		s.categoryURL("CG002"))
}

func TestCategoryURLPreservesExistingQuery(t *testing.T) {
	s := New(Config{BaseURL: "https://example.test/list?sort=new"}, nil)
	got := s.categoryURL("CG001")
	assert.Contains(t, got, "sort=new")
	assert.Contains(t, got, "category=CG001")
}

func TestSearchURLEncodesKeyword(t *testing.T) {
	s := New(Config{BaseURL: "https://example.test/search"}, nil)
	got := s.searchURL("폭싹속았수다")
	assert.Contains(t, got, "keyword=%ED%8F%AD%EC%8B%B9%EC%86%8D%EC%95%98%EC%88%98%EB%8B%A4")
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(Config{}, nil)
	assert.Equal(t, 30*time.Second, s.cfg.Timeout)
	assert.Equal(t, 3, s.cfg.Retry.MaxAttempts)
}

func TestLoginRequiresInitialization(t *testing.T) {
	s := New(Config{}, nil)
	ok, err := s.Login(t.Context(), "https://example.test/login", credentialsFixture())
	assert.False(t, ok)
	assert.Error(t, err)
}
