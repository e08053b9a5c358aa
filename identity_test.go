package taskchat_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/fwojciec/taskchat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBind(t *testing.T) {
	t.Parallel()

	t.Run("binds identity", func(t *testing.T) {
		t.Parallel()
		s, err := taskchat.Bind("u1", "tok")
		require.NoError(t, err)
		id, err := s.Identity()
		require.NoError(t, err)
		assert.Equal(t, taskchat.Identity{UserID: "u1", Credential: "tok"}, id)
	})

	t.Run("rejects empty user", func(t *testing.T) {
		t.Parallel()
		_, err := taskchat.Bind("", "tok")
		assert.ErrorIs(t, err, taskchat.ErrNoIdentity)
	})

	t.Run("released scope", func(t *testing.T) {
		t.Parallel()
		s, err := taskchat.Bind("u1", "")
		require.NoError(t, err)
		s.Release()
		s.Release()
		_, err = s.Identity()
		assert.ErrorIs(t, err, taskchat.ErrScopeReleased)
	})

	t.Run("nil scope", func(t *testing.T) {
		t.Parallel()
		var s *taskchat.Scope
		_, err := s.Identity()
		assert.ErrorIs(t, err, taskchat.ErrNoIdentity)
	})
}

func TestScope_Isolation(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			s, err := taskchat.Bind(user, "tok-"+user)
			if !assert.NoError(t, err) {
				return
			}
			defer s.Release()
			id, err := s.Identity()
			assert.NoError(t, err)
			assert.Equal(t, user, id.UserID)
			assert.Equal(t, "tok-"+user, id.Credential)
		}()
	}
	wg.Wait()
}

func TestIdentity_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "user=u1 credential=***", taskchat.Identity{UserID: "u1", Credential: "secret"}.String())
	assert.Equal(t, "user=u1", taskchat.Identity{UserID: "u1"}.String())
}
