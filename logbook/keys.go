package logbook

// Fixed keys of the persisted documents. The names match the layout the
// browser edition of the logbook wrote to localStorage, so an exported
// localStorage dump can be loaded key for key.
const (
	KeyInitialFuel   = "initialFuelState"
	KeyTrips         = "fuelCalc_trips"
	KeyCargo         = "fuelCalc_cargo"
	KeySessions      = "refrigeratorTracker_sessions"
	KeyActiveSession = "refrigeratorTracker_current"
	KeyTransactions  = "fuelTankManager_transactions"
	KeyTankStatus    = "fuelTankManager_status"
	KeyReports       = "fuelReports"
)

// AllKeys lists every key the logbook owns.
var AllKeys = []string{
	KeyInitialFuel,
	KeyTrips,
	KeyCargo,
	KeySessions,
	KeyActiveSession,
	KeyTransactions,
	KeyTankStatus,
	KeyReports,
}

// ContributesToTanks reports whether a change of key invalidates the tank
// status.
func ContributesToTanks(key string) bool {
	switch key {
	case KeyInitialFuel, KeyTrips, KeySessions, KeyTransactions:
		return true
	}
	return false
}
