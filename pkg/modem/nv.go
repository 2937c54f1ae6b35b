package modem

import "github.com/dbehnke/modem-emu/pkg/logger"

// Keys of the persisted settings.
const (
	nvTechnology         = "modem_technology"
	nvPreferredMode      = "preferred_mode"
	nvOperNameIndex      = "oper_name_index"
	nvOperIndex          = "oper_index"
	nvSelectionMode      = "selection_mode"
	nvOperCount          = "oper_count"
	nvSubscriptionSource = "cdma_subscription_source"
	nvRoamingPref        = "cdma_roaming_pref"
	nvInECBM             = "in_ecbm"
	nvPRLVersion         = "prl_version"
	nvSMSCAddress        = "smsc_address"
	nvEmergencyNumberFmt = "emergency_number_%d"
)

// StoreDefaults seeds a store that could not be loaded.
func StoreDefaults() map[string]string {
	return map[string]string{nvTechnology: "gsm"}
}

// Store write failures never reach the guest.
func (m *Modem) persistInt(key string, v int) {
	if err := m.store.SetInt(key, v); err != nil {
		m.log.Warn("Failed to persist setting", logger.String("key", key), logger.Error(err))
	}
}

func (m *Modem) persistString(key, v string) {
	if err := m.store.SetString(key, v); err != nil {
		m.log.Warn("Failed to persist setting", logger.String("key", key), logger.Error(err))
	}
}
