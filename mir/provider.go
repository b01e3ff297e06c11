package mir

// Layout is the concrete size and alignment of a type under a
// substitution. Computed by the front end, never by the evaluator.
type Layout struct {
	Size  uint64 // in bytes
	Align uint64 // in bytes, a power of two
}

// FnInstance is a monomorphized function: a definition plus the
// substitution it is instantiated with.
type FnInstance struct {
	Def    DefId
	Substs Substs
}

// MethodSig identifies one dispatchable method of an interface in
// declaration order.
type MethodSig struct {
	Def  DefId  // the interface method's own definition
	Name string // for diagnostics
}

// InterfaceDef describes an interface for vtable construction: its
// direct supertraits and its own dispatchable methods in declaration
// order.
type InterfaceDef struct {
	Supers  []InterfaceRef
	Methods []MethodSig
}

// CallResolution is the result of resolving a callee.
type CallResolution interface {
	callResolution()
}

// CallConcrete resolves to a specific monomorphized function.
type CallConcrete struct {
	Fn FnInstance
}

func (CallConcrete) callResolution() {}

// CallVirtual resolves to a vtable method slot; the evaluator reads
// the function pointer out of the receiver's vtable at runtime.
type CallVirtual struct {
	Slot uint32
}

func (CallVirtual) callResolution() {}

// Provider is the type/definition lookup service the evaluator
// depends on. The front end implements it; the evaluator only
// consumes already-resolved bodies, layouts and method resolutions.
//
// Layout and body lookups may fail for types involving errors upstream;
// the evaluator converts those failures into evaluation errors instead
// of guessing.
type Provider interface {
	// Body returns the control-flow-graph body of a definition under a
	// substitution.
	Body(def DefId, substs Substs) (*Body, error)

	// Layout returns the size and alignment of a fully substituted type.
	Layout(t Type) (Layout, error)

	// DefKind classifies a definition.
	DefKind(def DefId) DefKind

	// Name returns a human-readable path for diagnostics.
	Name(def DefId) string

	// FnSig returns the signature of a function definition under a
	// substitution, for function-pointer compatibility checks.
	FnSig(def DefId, substs Substs) (FnPtrType, error)

	// Destructor returns the destructor instance of a concrete type,
	// if the type has one.
	Destructor(t Type) (FnInstance, bool)

	// Interface describes an interface for vtable construction.
	Interface(ref InterfaceRef) (InterfaceDef, error)

	// ResolveMethod resolves one interface method for a concrete
	// receiver type. ok=false means the method exists but cannot be
	// proven callable for this receiver (an unprovable default
	// method); the vtable slot is left null rather than failing.
	ResolveMethod(ref InterfaceRef, method MethodSig, receiver Type) (fn FnInstance, ok bool, err error)

	// ResolveCall resolves a direct call target: either a concrete
	// instance, or a vtable slot for interface-object dispatch.
	ResolveCall(def DefId, substs Substs) (CallResolution, error)
}
