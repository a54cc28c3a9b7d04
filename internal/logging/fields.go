package logging

import (
	"time"

	"github.com/rs/zerolog"
)

// Field is one structured key/value pair.
type Field interface {
	AddTo(event *zerolog.Event)
	addToContext(ctx zerolog.Context) zerolog.Context
}

type stringField struct {
	key   string
	value string
}

func (f stringField) AddTo(event *zerolog.Event) { event.Str(f.key, f.value) }
func (f stringField) addToContext(ctx zerolog.Context) zerolog.Context {
	return ctx.Str(f.key, f.value)
}

type intField struct {
	key   string
	value int64
}

func (f intField) AddTo(event *zerolog.Event) { event.Int64(f.key, f.value) }
func (f intField) addToContext(ctx zerolog.Context) zerolog.Context {
	return ctx.Int64(f.key, f.value)
}

type floatField struct {
	key   string
	value float64
}

func (f floatField) AddTo(event *zerolog.Event) { event.Float64(f.key, f.value) }
func (f floatField) addToContext(ctx zerolog.Context) zerolog.Context {
	return ctx.Float64(f.key, f.value)
}

type durationField struct {
	key   string
	value time.Duration
}

func (f durationField) AddTo(event *zerolog.Event) { event.Dur(f.key, f.value) }
func (f durationField) addToContext(ctx zerolog.Context) zerolog.Context {
	return ctx.Dur(f.key, f.value)
}

type errorField struct {
	value error
}

func (f errorField) AddTo(event *zerolog.Event) { event.Err(f.value) }
func (f errorField) addToContext(ctx zerolog.Context) zerolog.Context {
	return ctx.Err(f.value)
}

type anyField struct {
	key   string
	value any
}

func (f anyField) AddTo(event *zerolog.Event) { event.Interface(f.key, f.value) }
func (f anyField) addToContext(ctx zerolog.Context) zerolog.Context {
	return ctx.Interface(f.key, f.value)
}

type boolField struct {
	key   string
	value bool
}

func (f boolField) AddTo(event *zerolog.Event) { event.Bool(f.key, f.value) }
func (f boolField) addToContext(ctx zerolog.Context) zerolog.Context {
	return ctx.Bool(f.key, f.value)
}

func String(key, value string) Field                 { return stringField{key: key, value: value} }
func Int(key string, value int) Field                { return intField{key: key, value: int64(value)} }
func Int64(key string, value int64) Field            { return intField{key: key, value: value} }
func Float64(key string, value float64) Field        { return floatField{key: key, value: value} }
func Duration(key string, value time.Duration) Field { return durationField{key: key, value: value} }
func Error(err error) Field                          { return errorField{value: err} }
func Any(key string, value any) Field                { return anyField{key: key, value: value} }
func Bool(key string, value bool) Field              { return boolField{key: key, value: value} }
