package credential

import (
	"errors"
	"testing"

	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringStore_Lifecycle(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore("autoflow-test")

	require.NoError(t, store.Set("slack-webhook", "https://hooks.example/abc"))
	require.NoError(t, store.Set("smtp", "hunter2"))
	require.NoError(t, store.Set("smtp", "hunter3"))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"slack-webhook", "smtp"}, names)

	v, err := store.Get("smtp")
	require.NoError(t, err)
	assert.Equal(t, "hunter3", v)

	require.NoError(t, store.Delete("smtp"))
	_, err = store.Get("smtp")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.Delete("smtp"), ErrNotFound))

	names, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"slack-webhook"}, names)

	assert.Error(t, store.Set("", "x"))
	assert.Error(t, store.Set("../smtp", "x"))
}

func TestResolve(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore("autoflow-test")
	require.NoError(t, store.Set("hook", "https://hooks.example/xyz"))

	cfg := types.Config{
		"webhookUrl": types.String(Ref("hook")),
		"message":    types.String("hello"),
	}

	resolved, err := Resolve(store, cfg)
	require.NoError(t, err)
	url, _ := resolved["webhookUrl"].AsString()
	assert.Equal(t, "https://hooks.example/xyz", url)

	original, _ := cfg["webhookUrl"].AsString()
	assert.Equal(t, "secret://hook", original, "input config is not modified")

	_, err = Resolve(store, types.Config{"x": types.String(Ref("missing"))})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = Resolve(nil, cfg)
	assert.Error(t, err)

	plain, err := Resolve(nil, types.Config{"n": types.Number(1)})
	require.NoError(t, err)
	assert.Len(t, plain, 1)
}
