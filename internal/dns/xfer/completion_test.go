package xfer

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/dnsxfer/internal/dns/domain"
)

func testResponse(id uint16) *Response {
	m := new(dns.Msg)
	m.Id = id
	m.Response = true
	return &Response{Message: m}
}

func TestCompletion_ResolveOnce(t *testing.T) {
	r, p := NewCompletion()
	assert.False(t, r.Settled())

	assert.True(t, r.Resolve(testResponse(7)))
	assert.False(t, r.Resolve(testResponse(8)))
	assert.False(t, r.Fail(errors.New("late")))
	assert.False(t, r.Cancel(domain.CancelDriverShutdown))
	assert.True(t, r.Settled())

	resp, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(7), resp.Message.Id)
}

func TestCompletion_ConcurrentSettle(t *testing.T) {
	r, p := NewCompletion()
	var wg sync.WaitGroup
	wins := make(chan bool, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				wins <- r.Resolve(testResponse(uint16(i)))
			} else {
				wins <- r.Cancel(domain.CancelConnectionReset)
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for w := range wins {
		if w {
			count++
		}
	}
	assert.Equal(t, 1, count)
	<-p.Done()
}

func TestCompletion_NilResolveIsFailure(t *testing.T) {
	r, p := NewCompletion()
	r.Resolve(nil)
	_, err := p.Result()
	assert.ErrorIs(t, err, domain.ErrMessage)
}

func TestCompletion_FailNil(t *testing.T) {
	r, p := NewCompletion()
	r.Fail(nil)
	_, err := p.Result()
	require.Error(t, err)
	assert.Equal(t, domain.KindMessage, domain.KindOf(err))
}

func TestCompletion_Cancel(t *testing.T) {
	r, p := NewCompletion()
	r.Cancel(domain.CancelDriverShutdown)
	_, err := p.Result()
	assert.ErrorIs(t, err, domain.ErrCanceled)

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.CancelDriverShutdown, de.Token)
}

func TestCompletion_WaitAbandons(t *testing.T) {
	r, p := NewCompletion()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, domain.ErrCanceled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, r.Settled())
	assert.False(t, r.Resolve(testResponse(1)), "late producer result is ignored")
}

func TestCompletion_Abandon(t *testing.T) {
	r, p := NewCompletion()
	assert.True(t, p.Abandon())
	assert.True(t, r.Settled())
	_, err := p.Result()
	assert.ErrorIs(t, err, domain.ErrCanceled)
}

func dropResponder() *Pending {
	_, p := NewCompletion()
	return p
}

func TestCompletion_DroppedResponderCancels(t *testing.T) {
	p := dropResponder()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		select {
		case <-p.Done():
			_, err := p.Result()
			var de *domain.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, domain.KindCanceled, de.Kind)
			assert.Equal(t, domain.CancelDropped, de.Token)
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("dropped responder never settled its slot")
}

func TestResolved(t *testing.T) {
	p := Resolved(nil, domain.Messagef("boom"))
	select {
	case <-p.Done():
	default:
		t.Fatal("Resolved slot should already be settled")
	}
	_, err := p.Result()
	assert.EqualError(t, err, "boom")
	assert.False(t, p.Abandon())
}

func TestThen(t *testing.T) {
	t.Run("transforms response", func(t *testing.T) {
		r, p := NewCompletion()
		out := Then(p, func(resp *Response) (*Response, error) {
			resp.Message.Id++
			return resp, nil
		})
		r.Resolve(testResponse(41))
		resp, err := out.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint16(42), resp.Message.Id)
	})

	t.Run("transform failure", func(t *testing.T) {
		r, p := NewCompletion()
		out := Then(p, func(*Response) (*Response, error) {
			return nil, domain.Messagef("rejected")
		})
		r.Resolve(testResponse(1))
		_, err := out.Wait(context.Background())
		assert.EqualError(t, err, "rejected")
	})

	t.Run("upstream failure passes through", func(t *testing.T) {
		r, p := NewCompletion()
		called := false
		out := Then(p, func(resp *Response) (*Response, error) {
			called = true
			return resp, nil
		})
		r.Cancel(domain.CancelConnectionReset)
		_, err := out.Wait(context.Background())
		assert.ErrorIs(t, err, domain.ErrCanceled)
		assert.False(t, called)
	})

	t.Run("abandon propagates", func(t *testing.T) {
		r, p := NewCompletion()
		out := Then(p, func(resp *Response) (*Response, error) { return resp, nil })
		out.Abandon()
		select {
		case <-p.Done():
		case <-time.After(time.Second):
			t.Fatal("abandon did not reach the inner slot")
		}
		assert.True(t, r.Settled())
	})
}
