package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerOrderAndRemove(t *testing.T) {
	c := New()
	base := c.q.now
	var fired []string
	rec := func(name string) Timeout {
		return TimeoutFunc(func(ctl *Controller, item *Item) { fired = append(fired, name) })
	}

	c.Add(30*time.Millisecond, rec("c"))
	c.Add(10*time.Millisecond, rec("a"))
	b := c.Add(20*time.Millisecond, rec("b"))
	d := c.Add(40*time.Millisecond, rec("d"))
	assert.Equal(t, 4, c.Count())

	assert.NotNil(t, c.Remove(d))
	assert.Nil(t, c.Remove(d))

	c.tickAt(base.Add(5 * time.Millisecond))
	assert.Empty(t, fired)
	assert.Equal(t, 15*time.Millisecond, c.RemainTime(b))

	c.tickAt(base.Add(25 * time.Millisecond))
	assert.Equal(t, []string{"a", "b"}, fired)

	c.tickAt(base.Add(time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, c.Count())
}

func TestTimerPeriodic(t *testing.T) {
	c := New()
	base := c.q.now
	n := 0
	c.Add(10*time.Millisecond, TimeoutFunc(func(ctl *Controller, item *Item) {
		n++
		ctl.Next(item)
	}))

	for i := 1; i <= 5; i++ {
		c.tickAt(base.Add(time.Duration(i) * 10 * time.Millisecond))
	}
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, c.Count())
}

func TestTimerUpdate(t *testing.T) {
	c := New()
	base := c.q.now
	fired := false
	item := c.Add(time.Hour, TimeoutFunc(func(ctl *Controller, item *Item) { fired = true }))
	c.Update(item, time.Millisecond)
	c.tickAt(base.Add(2 * time.Millisecond))
	assert.True(t, fired)
}
