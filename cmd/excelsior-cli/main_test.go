package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"excelsior/config"
	"excelsior/crypto"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func withPassphrase(t *testing.T, pass string) {
	t.Helper()
	previous := passSource
	passSource = func() (string, error) { return pass, nil }
	t.Cleanup(func() { passSource = previous })
}

func testAddress(last byte) crypto.Address {
	var a crypto.Address
	a[0] = 0x11
	a[crypto.AddressLength-1] = last
	return a
}

func TestMerkleBuildAndVerify(t *testing.T) {
	dir := t.TempDir()
	alice, bob, carol := testAddress(1), testAddress(2), testAddress(3)
	allocations := "round: 4\nmint: LXR\nallocations:\n" +
		"  - recipient: " + alice.String() + "\n    amount: 100\n" +
		"  - recipient: " + bob.String() + "\n    amount: 250\n" +
		"  - recipient: " + carol.String() + "\n    amount: 5\n"
	in := filepath.Join(dir, "round4.yaml")
	require.NoError(t, os.WriteFile(in, []byte(allocations), 0o600))

	out, err := execute(t, "merkle", "build", "--in", in)
	require.NoError(t, err)
	var set claimSet
	require.NoError(t, json.Unmarshal([]byte(out), &set))
	require.Equal(t, uint64(4), set.Round)
	require.Equal(t, "355", set.Total)
	require.Len(t, set.Claims, 3)

	bobClaim := set.Claims[1]
	require.Equal(t, bob.String(), bobClaim.Recipient)
	out, err = execute(t, "merkle", "verify",
		"--root", set.Root,
		"--index", "1",
		"--recipient", bobClaim.Recipient,
		"--amount", "250",
		"--proof", strings.Join(bobClaim.Proof, ","))
	require.NoError(t, err)
	require.Equal(t, "valid\n", out)

	_, err = execute(t, "merkle", "verify",
		"--root", set.Root,
		"--index", "1",
		"--recipient", bobClaim.Recipient,
		"--amount", "251",
		"--proof", strings.Join(bobClaim.Proof, ","))
	require.ErrorContains(t, err, "does not match")
}

func TestMerkleBuildRejectsBadAllocations(t *testing.T) {
	_, err := buildClaimSet(allocationFile{})
	require.Error(t, err)

	_, err = buildClaimSet(allocationFile{Allocations: []allocation{{Recipient: "nope", Amount: 1}}})
	require.Error(t, err)

	_, err = buildClaimSet(allocationFile{Allocations: []allocation{{Recipient: testAddress(1).String()}}})
	require.ErrorContains(t, err, "positive")
}

func TestKeygenAndToken(t *testing.T) {
	withPassphrase(t, "operator-pass")
	path := filepath.Join(t.TempDir(), "operator.keystore")

	out, err := execute(t, "keygen", "--out", path)
	require.NoError(t, err)
	addr := strings.TrimSpace(out)
	_, err = crypto.DecodeAddress(addr)
	require.NoError(t, err)

	_, err = execute(t, "keygen", "--out", path)
	require.ErrorContains(t, err, "already exists")

	t.Setenv(config.DefaultJWTSecretEnv, "")
	_, err = execute(t, "token", "--keystore", path)
	require.ErrorContains(t, err, config.DefaultJWTSecretEnv)

	t.Setenv(config.DefaultJWTSecretEnv, "node-secret")
	out, err = execute(t, "token", "--keystore", path)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
}

func TestCallPrintsResultAndErrors(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		if gotBody["method"] == "ledger_get" {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"feeBps":100}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32013,"message":"ledger: not initialized"}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "call", "ledger_get", "--rpc", srv.URL, "--token", "abc")
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", gotAuth)
	require.Contains(t, out, `"feeBps": 100`)

	_, err = execute(t, "call", "stake_deposit", `{"amount":"5"}`, "--rpc", srv.URL)
	require.ErrorContains(t, err, "-32013")
	params, ok := gotBody["params"].([]interface{})
	require.True(t, ok)
	require.Len(t, params, 1)

	_, err = execute(t, "call", "stake_deposit", `{"amount":`, "--rpc", srv.URL)
	require.ErrorContains(t, err, "JSON object")
}
