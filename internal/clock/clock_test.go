package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	start := time.Unix(0, 0)
	c := NewFake(start)
	var got []string
	c.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	c.AfterFunc(time.Second, func() { got = append(got, "a") })
	c.AfterFunc(5*time.Second, func() { got = append(got, "late") })

	c.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, start.Add(3*time.Second), c.Now())
	assert.Equal(t, 1, c.Pending())
}

func TestFake_CallbackSeesDeadlineAndCanReschedule(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewFake(start)
	var seen []time.Time
	c.AfterFunc(time.Second, func() {
		seen = append(seen, c.Now())
		c.AfterFunc(time.Second, func() { seen = append(seen, c.Now()) })
	})

	c.Advance(5 * time.Second)
	assert.Equal(t, []time.Time{start.Add(time.Second), start.Add(2 * time.Second)}, seen)
	assert.Zero(t, c.Pending())
}

func TestFake_Stop(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired)
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
