package pipeline

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stringer interface{ String() string }

type namedThing struct{ N string }

func (n namedThing) String() string { return n.N }

type pointerThing struct{ N string }

func (p *pointerThing) String() string { return p.N }

func TestTypeParamSatisfies(t *testing.T) {
	stringerType := reflect.TypeOf((*stringer)(nil)).Elem()

	tests := []struct {
		name  string
		param TypeParam
		arg   reflect.Type
		want  bool
	}{
		{"any kind accepts struct", TypeParam{Kind: KindAny}, reflect.TypeOf(namedThing{}), true},
		{"any kind accepts pointer", TypeParam{Kind: KindAny}, reflect.TypeOf(&namedThing{}), true},
		{"nil argument never satisfies", TypeParam{Kind: KindAny}, nil, false},

		{"value kind accepts struct", TypeParam{Kind: KindValue}, reflect.TypeOf(namedThing{}), true},
		{"value kind accepts string", TypeParam{Kind: KindValue}, reflect.TypeOf(""), true},
		{"value kind accepts array", TypeParam{Kind: KindValue}, reflect.TypeOf([2]int{}), true},
		{"value kind rejects pointer wrapper", TypeParam{Kind: KindValue}, reflect.TypeOf(&namedThing{}), false},
		{"value kind rejects slice", TypeParam{Kind: KindValue}, reflect.TypeOf([]int{}), false},
		{"value kind rejects interface", TypeParam{Kind: KindValue}, stringerType, false},

		{"reference kind accepts pointer", TypeParam{Kind: KindReference}, reflect.TypeOf(&namedThing{}), true},
		{"reference kind accepts map", TypeParam{Kind: KindReference}, reflect.TypeOf(map[string]int{}), true},
		{"reference kind accepts interface", TypeParam{Kind: KindReference}, stringerType, true},
		{"reference kind rejects struct", TypeParam{Kind: KindReference}, reflect.TypeOf(namedThing{}), false},
		{"reference kind rejects int", TypeParam{Kind: KindReference}, reflect.TypeOf(0), false},

		{"constructible accepts struct", TypeParam{Constructible: true}, reflect.TypeOf(namedThing{}), true},
		{"constructible accepts pointer", TypeParam{Constructible: true}, reflect.TypeOf(&namedThing{}), true},
		{"constructible rejects interface", TypeParam{Constructible: true}, stringerType, false},

		{"implements satisfied by value receiver", TypeParam{Implements: []reflect.Type{stringerType}}, reflect.TypeOf(namedThing{}), true},
		{"implements satisfied by pointer", TypeParam{Implements: []reflect.Type{stringerType}}, reflect.TypeOf(&pointerThing{}), true},
		{"implements rejects bare value with pointer methods", TypeParam{Implements: []reflect.Type{stringerType}}, reflect.TypeOf(pointerThing{}), false},
		{"implements rejects unrelated type", TypeParam{Implements: []reflect.Type{stringerType}}, reflect.TypeOf(0), false},

		{"assignable to concrete type", TypeParam{AssignableTo: []reflect.Type{reflect.TypeOf(namedThing{})}}, reflect.TypeOf(namedThing{}), true},
		{"assignable to interface", TypeParam{AssignableTo: []reflect.Type{stringerType}}, reflect.TypeOf(namedThing{}), true},
		{"assignable rejects mismatch", TypeParam{AssignableTo: []reflect.Type{reflect.TypeOf(namedThing{})}}, reflect.TypeOf(0), false},

		{
			"all constraints must hold",
			TypeParam{Kind: KindValue, Constructible: true, Implements: []reflect.Type{stringerType}},
			reflect.TypeOf(namedThing{}),
			true,
		},
		{
			"one failing constraint rejects",
			TypeParam{Kind: KindValue, Implements: []reflect.Type{stringerType}},
			reflect.TypeOf(&pointerThing{}),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.param.satisfies(tt.arg))
		})
	}
}

func TestCompatible(t *testing.T) {
	params := []TypeParam{
		{Name: "TRequest", Kind: KindValue},
		{Name: "TResponse"},
	}

	t.Run("matching arity and constraints", func(t *testing.T) {
		assert.True(t, compatible(params, []reflect.Type{
			reflect.TypeOf(namedThing{}),
			reflect.TypeOf(&namedThing{}),
		}))
	})

	t.Run("arity mismatch is incompatible", func(t *testing.T) {
		assert.False(t, compatible(params, []reflect.Type{reflect.TypeOf(namedThing{})}))
		assert.False(t, compatible(params, nil))
	})

	t.Run("first failing parameter rejects", func(t *testing.T) {
		assert.False(t, compatible(params, []reflect.Type{
			reflect.TypeOf(&namedThing{}),
			reflect.TypeOf(namedThing{}),
		}))
	})
}

func TestTypeParamValidate(t *testing.T) {
	stringerType := reflect.TypeOf((*stringer)(nil)).Elem()

	t.Run("valid parameter", func(t *testing.T) {
		p := TypeParam{Name: "T", Implements: []reflect.Type{stringerType}}
		assert.NoError(t, p.validate())
	})

	t.Run("nil implements entry", func(t *testing.T) {
		p := TypeParam{Name: "T", Implements: []reflect.Type{nil}}
		assert.Error(t, p.validate())
	})

	t.Run("concrete implements entry", func(t *testing.T) {
		p := TypeParam{Name: "T", Implements: []reflect.Type{reflect.TypeOf(namedThing{})}}
		assert.ErrorContains(t, p.validate(), "not an interface")
	})

	t.Run("nil assignable entry", func(t *testing.T) {
		p := TypeParam{Name: "T", AssignableTo: []reflect.Type{nil}}
		assert.Error(t, p.validate())
	})

	t.Run("unnamed parameter label", func(t *testing.T) {
		p := TypeParam{Implements: []reflect.Type{nil}}
		assert.ErrorContains(t, p.validate(), "<unnamed>")
	})
}

func TestParamKindString(t *testing.T) {
	assert.Equal(t, "any", KindAny.String())
	assert.Equal(t, "reference", KindReference.String())
	assert.Equal(t, "value", KindValue.String())
}
