package coral

import (
	"context"
	"fmt"
	"sync"
)

const (
	objectID TypeID = "System.Object, System.Private.CoreLib"
	stringID TypeID = "System.String, System.Private.CoreLib"
	voidID   TypeID = "System.Void, System.Private.CoreLib"
	animalID TypeID = "App.Animal, App"
	dogID    TypeID = "App.Dog, App"
	petID    TypeID = "App.IPet, App"
)

// fakeBackend is a scripted host that counts round trips per operation
type fakeBackend struct {
	mu      sync.Mutex
	records map[TypeID]TypeRecord
	bases   map[TypeID]TypeID
	fields  map[TypeID][]FieldRecord
	methods map[TypeID][]MethodRecord
	assign  map[[2]TypeID]bool
	objects map[ObjectHandle]TypeID

	calls   map[string]int
	failing map[string]error
	closed  bool
	onExc   func(HostException)
}

func newFakeBackend() *fakeBackend {
	rec := func(ns, name, asm string) TypeRecord {
		full := ns + "." + name
		return TypeRecord{FullName: full, Name: name, Namespace: ns, AssemblyQualifiedName: full + ", " + asm}
	}

	object := rec("System", "Object", "System.Private.CoreLib")
	str := rec("System", "String", "System.Private.CoreLib")
	str.BaseTypeName = "System.Object"
	void := rec("System", "Void", "System.Private.CoreLib")
	void.BaseTypeName = "System.ValueType"
	animal := rec("App", "Animal", "App")
	animal.BaseTypeName = "System.Object"
	dog := rec("App", "Dog", "App")
	dog.BaseTypeName = "App.Animal"
	pet := rec("App", "IPet", "App")

	return &fakeBackend{
		records: map[TypeID]TypeRecord{
			objectID: object, stringID: str, voidID: void,
			animalID: animal, dogID: dog, petID: pet,
		},
		bases: map[TypeID]TypeID{
			stringID: objectID,
			animalID: objectID,
			dogID:    animalID,
		},
		fields: map[TypeID][]FieldRecord{
			animalID: {{Name: "Name", Type: stringID}},
			dogID:    {},
		},
		methods: map[TypeID][]MethodRecord{
			animalID: {
				{Name: "Speak", ReturnType: voidID},
				{Name: "Speak", ReturnType: voidID, Parameters: []TypeID{stringID}},
				{Name: "Create", ReturnType: animalID, Modifiers: ModifierStatic},
			},
		},
		assign: map[[2]TypeID]bool{
			{dogID, animalID}:    true,
			{dogID, objectID}:    true,
			{animalID, objectID}: true,
			{dogID, petID}:       true,
		},
		objects: map[ObjectHandle]TypeID{7: dogID},
		calls:   make(map[string]int),
		failing: make(map[string]error),
	}
}

func (f *fakeBackend) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.closed {
		return fmt.Errorf("%w: fake closed", ErrHostUnavailable)
	}
	return f.failing[op]
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failing, op)
		return
	}
	f.failing[op] = err
}

func (f *fakeBackend) lookup(name string) (*TypeRecord, error) {
	for id, rec := range f.records {
		if string(id) == name || rec.FullName == name {
			r := rec
			return &r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnresolvedType, name)
}

func (f *fakeBackend) ResolveType(ctx context.Context, name string) (*TypeRecord, error) {
	if err := f.enter("resolve"); err != nil {
		return nil, err
	}
	return f.lookup(name)
}

func (f *fakeBackend) ResolveObjectType(ctx context.Context, handle ObjectHandle) (*TypeRecord, error) {
	if err := f.enter("object"); err != nil {
		return nil, err
	}
	id, ok := f.objects[handle]
	if !ok {
		return nil, fmt.Errorf("%w: object %d", ErrUnresolvedType, handle)
	}
	return f.lookup(string(id))
}

func (f *fakeBackend) ResolveBaseType(ctx context.Context, id TypeID) (*TypeRecord, error) {
	if err := f.enter("base"); err != nil {
		return nil, err
	}
	if _, ok := f.records[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedType, id)
	}
	base, ok := f.bases[id]
	if !ok {
		return nil, nil
	}
	rec := f.records[base]
	return &rec, nil
}

func (f *fakeBackend) EnumerateFields(ctx context.Context, id TypeID) ([]FieldRecord, error) {
	if err := f.enter("fields"); err != nil {
		return nil, err
	}
	if _, ok := f.records[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedType, id)
	}
	return f.fields[id], nil
}

func (f *fakeBackend) EnumerateMethods(ctx context.Context, id TypeID) ([]MethodRecord, error) {
	if err := f.enter("methods"); err != nil {
		return nil, err
	}
	if _, ok := f.records[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedType, id)
	}
	return f.methods[id], nil
}

func (f *fakeBackend) IsAssignable(ctx context.Context, source, target TypeID) (bool, error) {
	if err := f.enter("assign"); err != nil {
		return false, err
	}
	if source == target {
		return true, nil
	}
	return f.assign[[2]TypeID{source, target}], nil
}

func (f *fakeBackend) SetExceptionHandler(handler func(HostException)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onExc = handler
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
