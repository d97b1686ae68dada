package sigv4

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// signRequest is a minimal, from-scratch reference signer used only to
// produce self-consistent test fixtures; it deliberately duplicates
// the canonical-request construction so the test exercises the same
// algorithm the verifier implements, not a shared helper that could
// hide a bug present in both.
func signRequest(t *testing.T, method, rawPath string, headers http.Header, body []byte, accessKey, secretKey, date, region string) *http.Request {
	t.Helper()

	u := &url.URL{Path: rawPath}
	req, err := http.NewRequest(method, "http://"+headers.Get("Host")+rawPath, nil)
	require.NoError(t, err)
	req.Header = headers
	req.URL = u
	req.Host = headers.Get("Host")

	bodyHashSum := sha256.Sum256(body)
	bodyHash := hex.EncodeToString(bodyHashSum[:])
	req.Header.Set("x-amz-content-sha256", bodyHash)

	timestamp := date + "T000000Z"
	req.Header.Set("X-Amz-Date", timestamp)

	signedHeaders := []string{"host", "x-amz-content-sha256", "x-amz-date"}
	canonReq := canonicalRequest(method, rawPath, req.URL, req, signedHeaders, bodyHash)
	canonReqHashSum := sha256.Sum256([]byte(canonReq))

	scope := date + "/" + region + "/s3/aws4_request"
	sts := stringToSign(timestamp, scope, hex.EncodeToString(canonReqHashSum[:]))
	key := signingKey(secretKey, date, region, "s3")
	sig := hex.EncodeToString(hmacSHA256(key, []byte(sts)))

	req.Header.Set("Authorization",
		"AWS4-HMAC-SHA256 Credential="+accessKey+"/"+scope+
			", SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature="+sig)

	return req
}

func TestVerifyValidSignature(t *testing.T) {
	headers := http.Header{"Host": []string{"s3.example.com"}}
	body := []byte("hello")
	req := signRequest(t, "PUT", "/my-bucket/my-key.txt", headers, body, "AKIDEXAMPLE", "secretkey123", "20260730", "us-east-1")

	result := VerifyWithPathDetection(req, "/my-bucket/my-key.txt", "/my-key.txt", body, "secretkey123")
	require.True(t, result.Valid, result.Reason)
}

func TestVerifyWrongSecretFails(t *testing.T) {
	headers := http.Header{"Host": []string{"s3.example.com"}}
	body := []byte("hello")
	req := signRequest(t, "PUT", "/my-bucket/my-key.txt", headers, body, "AKIDEXAMPLE", "secretkey123", "20260730", "us-east-1")

	result := VerifyWithPathDetection(req, "/my-bucket/my-key.txt", "/my-key.txt", body, "wrong-secret")
	require.False(t, result.Valid)
}

func TestVerifyTamperedBodyFails(t *testing.T) {
	headers := http.Header{"Host": []string{"s3.example.com"}}
	body := []byte("hello")
	req := signRequest(t, "PUT", "/my-bucket/my-key.txt", headers, body, "AKIDEXAMPLE", "secretkey123", "20260730", "us-east-1")

	result := VerifyWithPathDetection(req, "/my-bucket/my-key.txt", "/my-key.txt", []byte("tampered"), "secretkey123")
	require.False(t, result.Valid)
}

func TestVerifyAcceptsVirtualHostedStyle(t *testing.T) {
	headers := http.Header{"Host": []string{"my-bucket.s3.example.com"}}
	body := []byte("hello")
	// Client signed the virtual-hosted path.
	req := signRequest(t, "GET", "/my-key.txt", headers, body, "AKIDEXAMPLE", "secretkey123", "20260730", "us-east-1")

	// Server, behind a proxy, believes the path-style form is also plausible;
	// path detection must accept the virtual-hosted candidate.
	result := VerifyWithPathDetection(req, "/my-bucket/my-key.txt", "/my-key.txt", body, "secretkey123")
	require.True(t, result.Valid, result.Reason)
}

func TestExtractAccessKeyIDFromHeader(t *testing.T) {
	req, err := http.NewRequest("GET", "http://s3.example.com/b/k", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20260730/us-east-1/s3/aws4_request, SignedHeaders=host, Signature=abc")
	require.Equal(t, "AKIDEXAMPLE", ExtractAccessKeyID(req))
}

func TestExtractAccessKeyIDFromQuery(t *testing.T) {
	req, err := http.NewRequest("GET", "http://s3.example.com/b/k?X-Amz-Credential=AKIDEXAMPLE%2F20260730%2Fus-east-1%2Fs3%2Faws4_request", nil)
	require.NoError(t, err)
	require.Equal(t, "AKIDEXAMPLE", ExtractAccessKeyID(req))
}

func TestExtractAccessKeyIDMissing(t *testing.T) {
	req, err := http.NewRequest("GET", "http://s3.example.com/b/k", nil)
	require.NoError(t, err)
	require.Equal(t, "", ExtractAccessKeyID(req))
}

func TestMissingAccessKeyReturnsUnauthorizedReason(t *testing.T) {
	req, err := http.NewRequest("GET", "http://s3.example.com/b/k", nil)
	require.NoError(t, err)
	result := VerifyWithPathDetection(req, "/b/k", "/k", nil, "secret")
	require.False(t, result.Valid)
	require.Contains(t, result.Reason, "access key")
}
