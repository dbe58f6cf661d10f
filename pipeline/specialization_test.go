package pipeline

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSpecialization(t *testing.T) {
	orderType := reflect.TypeOf(placeOrder{})
	receiptType := reflect.TypeOf(receipt{})

	t.Run("second resolve is a cache hit with the identical result", func(t *testing.T) {
		p := New()
		binds := 0
		tpl := MustTemplate("Audit", []TypeParam{{Name: "T"}}, func(args ...reflect.Type) (any, error) {
			binds++
			return &plainCommand{name: "audit"}, nil
		})

		first := p.resolveSpecialization(tpl, orderType, nil)
		second := p.resolveSpecialization(tpl, orderType, nil)

		assert.Same(t, first, second)
		assert.Equal(t, 1, binds)
		assert.True(t, first.Compatible())
		assert.NotNil(t, first.Instance())
	})

	t.Run("probe negative is cached without calling bind", func(t *testing.T) {
		p := New()
		binds := 0
		tpl := MustTemplate("ValueOnly", []TypeParam{{Name: "T", Kind: KindValue}}, func(args ...reflect.Type) (any, error) {
			binds++
			return &plainCommand{name: "value-only"}, nil
		})

		first := p.resolveSpecialization(tpl, reflect.TypeOf(&placeOrder{}), nil)
		second := p.resolveSpecialization(tpl, reflect.TypeOf(&placeOrder{}), nil)

		assert.Same(t, first, second)
		assert.Zero(t, binds)
		assert.False(t, first.Compatible())
		assert.Contains(t, first.Reason(), "constraints")
		assert.Nil(t, first.Instance())
	})

	t.Run("bind error downgrades to cached incompatibility", func(t *testing.T) {
		p := New()
		binds := 0
		tpl := MustTemplate("Flaky", []TypeParam{{Name: "T"}}, func(args ...reflect.Type) (any, error) {
			binds++
			return nil, errors.New("edge case the probe could not see")
		})

		first := p.resolveSpecialization(tpl, orderType, nil)
		second := p.resolveSpecialization(tpl, orderType, nil)

		assert.Same(t, first, second)
		assert.Equal(t, 1, binds)
		assert.False(t, first.Compatible())
		assert.Contains(t, first.Reason(), "edge case")
	})

	t.Run("bind panic is contained and cached", func(t *testing.T) {
		p := New()
		tpl := MustTemplate("Hostile", []TypeParam{{Name: "T"}}, func(args ...reflect.Type) (any, error) {
			panic("cannot bind this")
		})

		var spec *Specialization
		assert.NotPanics(t, func() {
			spec = p.resolveSpecialization(tpl, orderType, nil)
		})
		assert.False(t, spec.Compatible())
		assert.Contains(t, spec.Reason(), "bind panicked")
	})

	t.Run("nil bound instance is incompatible", func(t *testing.T) {
		p := New()
		tpl := MustTemplate("Empty", []TypeParam{{Name: "T"}}, func(args ...reflect.Type) (any, error) {
			return nil, nil
		})

		spec := p.resolveSpecialization(tpl, orderType, nil)
		assert.False(t, spec.Compatible())
		assert.Contains(t, spec.Reason(), "nil instance")
	})

	t.Run("bound instance without interceptor interfaces is incompatible", func(t *testing.T) {
		p := New()
		tpl := MustTemplate("Inert", []TypeParam{{Name: "T"}}, func(args ...reflect.Type) (any, error) {
			return &struct{ X int }{}, nil
		})

		spec := p.resolveSpecialization(tpl, orderType, nil)
		assert.False(t, spec.Compatible())
		assert.Contains(t, spec.Reason(), "no interceptor interface")
	})

	t.Run("distinct argument pairs cache separately", func(t *testing.T) {
		p := New()
		binds := 0
		tpl := MustTemplate("PerPair", []TypeParam{{Name: "TRequest"}, {Name: "TResponse"}},
			func(args ...reflect.Type) (any, error) {
				binds++
				return &plainRequest{name: "per-pair"}, nil
			})

		a := p.resolveSpecialization(tpl, orderType, receiptType)
		b := p.resolveSpecialization(tpl, receiptType, orderType)

		assert.NotSame(t, a, b)
		assert.Equal(t, 2, binds)
	})

	t.Run("templates cache by identity not by structure", func(t *testing.T) {
		p := New()
		mk := func() *Template {
			return MustTemplate("Twin", []TypeParam{{Name: "T"}}, func(args ...reflect.Type) (any, error) {
				return &plainCommand{name: "twin"}, nil
			})
		}
		one, two := mk(), mk()

		a := p.resolveSpecialization(one, orderType, nil)
		b := p.resolveSpecialization(two, orderType, nil)
		assert.NotSame(t, a, b)
	})

	t.Run("specialization name renders clean argument names", func(t *testing.T) {
		p := New()
		tpl := MustTemplate("Audit", []TypeParam{{Name: "TRequest"}, {Name: "TResponse"}},
			func(args ...reflect.Type) (any, error) {
				return &plainRequest{name: "audit"}, nil
			})

		spec := p.resolveSpecialization(tpl, orderType, receiptType)
		assert.Equal(t, "Audit[placeOrder,receipt]", spec.Name())
	})

	t.Run("instance declared order is captured", func(t *testing.T) {
		p := New()
		tpl := MustTemplate("Ordered", []TypeParam{{Name: "T"}}, func(args ...reflect.Type) (any, error) {
			return newOrderedCommand("ordered", 7, nil), nil
		})

		spec := p.resolveSpecialization(tpl, orderType, nil)
		require.True(t, spec.Compatible())
		assert.True(t, spec.orderSet)
		assert.Equal(t, 7, spec.order)
	})
}
