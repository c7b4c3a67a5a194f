package coral

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Kirdow/Coral/pkg/interop"
)

func TestOpenNilBackend(t *testing.T) {
	host, err := Open(nil)
	assert.Error(t, err)
	assert.Nil(t, host)
}

func TestGetTypeMemoizesNames(t *testing.T) {
	host, backend := openFake(t)
	ctx := context.Background()

	first, err := host.GetType(ctx, "App.Animal")
	require.NoError(t, err)
	second, err := host.GetType(ctx, "App.Animal")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, backend.count("resolve"))
}

func TestGetTypeDifferentPathsSameDescriptor(t *testing.T) {
	host, backend := openFake(t)
	ctx := context.Background()

	byName, err := host.GetType(ctx, "App.Dog")
	require.NoError(t, err)
	byObject, err := host.GetTypeFromObject(ctx, 7)
	require.NoError(t, err)

	assert.Same(t, byName, byObject)
	assert.Equal(t, 1, backend.count("object"))

	// Independent lookups of one identity must be mutually assignable
	ok, err := byName.IsAssignableTo(ctx, byObject)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = byObject.IsAssignableTo(ctx, byName)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetTypeUnresolved(t *testing.T) {
	host, _ := openFake(t)

	_, err := host.GetType(context.Background(), "App.Unicorn")
	require.Error(t, err)
	assert.True(t, IsUnresolvedType(err))
	assert.False(t, IsHostUnavailable(err))
	assert.Contains(t, err.Error(), "App.Unicorn")
}

func TestGetTypeFromObjectUnknownHandle(t *testing.T) {
	host, _ := openFake(t)

	_, err := host.GetTypeFromObject(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, IsUnresolvedType(err))
	assert.Contains(t, err.Error(), "object#99")
}

func TestTypeOfMemberType(t *testing.T) {
	host, _ := openFake(t)
	ctx := context.Background()
	animal := mustType(t, host, "App.Animal")

	fields, err := animal.GetFields(ctx)
	require.NoError(t, err)

	str, err := host.TypeOf(ctx, fields[0].Type)
	require.NoError(t, err)
	assert.Equal(t, "System.String", str.FullName())
}

func TestHostAfterClose(t *testing.T) {
	host, backend := openFake(t)
	require.NoError(t, host.Close())
	require.NoError(t, host.Close())

	_, err := host.GetType(context.Background(), "App.Animal")
	assert.True(t, IsHostUnavailable(err))

	_, err = host.GetTypeFromObject(context.Background(), 7)
	assert.True(t, IsHostUnavailable(err))

	assert.True(t, backend.closed)
	assert.Zero(t, backend.count("resolve"))
}

func TestMaxTextLength(t *testing.T) {
	backend := newFakeBackend()
	long := TypeRecord{
		FullName:              "App." + strings.Repeat("X", 64),
		Name:                  strings.Repeat("X", 64),
		Namespace:             "App",
		AssemblyQualifiedName: "App.Long, App",
	}
	backend.records["App.Long, App"] = long

	host, err := Open(backend, WithMaxTextLength(32))
	require.NoError(t, err)
	defer host.Close()

	_, err = host.GetType(context.Background(), "App.Long, App")
	require.Error(t, err)
	assert.True(t, IsUnresolvedType(err))
	assert.ErrorIs(t, err, interop.ErrTextTooLong)
}

func TestTypeWithoutIdentity(t *testing.T) {
	backend := newFakeBackend()
	backend.records["App.Ghost"] = TypeRecord{FullName: "App.Ghost", Name: "Ghost", Namespace: "App"}

	host, err := Open(backend)
	require.NoError(t, err)
	defer host.Close()

	_, err = host.GetType(context.Background(), "App.Ghost")
	assert.True(t, IsUnresolvedType(err))
}

func TestExceptionHandlerRegistration(t *testing.T) {
	backend := newFakeBackend()
	var got []HostException

	host, err := Open(backend, WithExceptionHandler(func(e HostException) {
		got = append(got, e)
	}))
	require.NoError(t, err)
	defer host.Close()

	require.NotNil(t, backend.onExc)
	backend.onExc(HostException{Message: "System.NullReferenceException"})
	require.Len(t, got, 1)
	assert.Equal(t, "System.NullReferenceException", got[0].Message)
}

func TestRoundTripsAreTraced(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	backend := newFakeBackend()

	host, err := Open(backend, WithLogger(zap.New(core)))
	require.NoError(t, err)
	defer host.Close()

	animal := mustType(t, host, "App.Animal")
	_, err = animal.GetFields(context.Background())
	require.NoError(t, err)
	_, err = animal.GetFields(context.Background())
	require.NoError(t, err)

	trips := logs.FilterMessage("host round trip").All()
	require.Len(t, trips, 2, "one resolve and one enumeration")
	assert.Equal(t, "resolve type", trips[0].ContextMap()["op"])
	assert.Equal(t, "enumerate fields", trips[1].ContextMap()["op"])
}
