package ingest

import (
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPrivateIP(t *testing.T) {
	blocked := []string{"127.0.0.1", "10.1.2.3", "172.20.0.1", "192.168.1.1", "169.254.169.254", "100.64.0.1", "::1", "fd00::1", "0.0.0.0"}
	for _, s := range blocked {
		assert.True(t, isPrivateIP(net.ParseIP(s)), s)
	}
	allowed := []string{"8.8.8.8", "151.101.1.69", "2607:f8b0:4004:c07::64"}
	for _, s := range allowed {
		assert.False(t, isPrivateIP(net.ParseIP(s)), s)
	}
	assert.True(t, isPrivateIP(nil))
}

func TestBlockPrivateDial(t *testing.T) {
	assert.Error(t, blockPrivateDial("tcp", "127.0.0.1:80", nil))
	assert.NoError(t, blockPrivateDial("tcp", "8.8.8.8:443", nil))
	assert.Error(t, blockPrivateDial("tcp", "no-port", nil))
}

func TestSafeCheckRedirect(t *testing.T) {
	req := func(raw string) *http.Request {
		u, _ := url.Parse(raw)
		return &http.Request{URL: u}
	}
	assert.NoError(t, safeCheckRedirect(req("https://sam.gov/x"), nil))
	assert.Error(t, safeCheckRedirect(req("ftp://sam.gov/x"), nil))
	assert.Error(t, safeCheckRedirect(req("http://localhost/admin"), nil))
	assert.Error(t, safeCheckRedirect(req("https://printer.local/"), nil))
	assert.Error(t, safeCheckRedirect(req("https://sam.gov/"), make([]*http.Request, 10)))
}
