package infer

import (
	"log/slog"

	"github.com/cottand/tyinfer/frontend/types"
	"github.com/cottand/tyinfer/internal/log"
)

var logger = log.DefaultLogger.With("section", "inference")

const defaultStartingFuel = 10000

// DefaultPolicy picks the instantiation of a variable with no proper bound.
// declared is the declared bound of param with resolved variables substituted.
type DefaultPolicy func(alg types.Algebra, param *types.TypeParam, declared types.Type) types.Type

// DeclaredBound instantiates to the declared bound of the type parameter,
// erased if it still depends on unresolved variables, or to Object
func DeclaredBound(alg types.Algebra, param *types.TypeParam, declared types.Type) types.Type {
	if param == nil || param.UpperBound() == nil {
		return alg.Object()
	}
	if !types.IsNone(declared) && types.IsProper(declared) && !types.MentionsParams(declared, []*types.TypeParam{param}) {
		return declared
	}
	return alg.Erasure(param.UpperBound())
}

// TopType always instantiates to Object
func TopType(alg types.Algebra, _ *types.TypeParam, _ types.Type) types.Type {
	return alg.Object()
}

type Settings struct {
	// Fuel is the number of reduce and incorporate rounds a session may run
	Fuel    int
	Default DefaultPolicy
	// Cache stores the results of top-level calls. A nil Cache disables caching.
	Cache   Cache
	Tracker *Tracker
	Logger  *slog.Logger
	Fresher *Fresher
}

func DefaultSettings() Settings {
	return Settings{
		Fuel:    defaultStartingFuel,
		Default: DeclaredBound,
		Cache:   NewMemoryCache(),
		Tracker: NewTracker(),
		Logger:  logger,
		Fresher: NewFresher(),
	}
}

// withDefaults fills the zero fields of s
func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.Fuel <= 0 {
		s.Fuel = def.Fuel
	}
	if s.Default == nil {
		s.Default = def.Default
	}
	if s.Tracker == nil {
		s.Tracker = def.Tracker
	}
	if s.Logger == nil {
		s.Logger = def.Logger
	}
	if s.Fresher == nil {
		s.Fresher = def.Fresher
	}
	return s
}
