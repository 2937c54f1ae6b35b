package modem

import (
	"fmt"
	"strings"
)

// Selection is the +COPS network selection mode.
type Selection int

const (
	SelectionAutomatic      Selection = 0
	SelectionManual         Selection = 1
	SelectionDeregistration Selection = 2
	SelectionSetFormat      Selection = 3
	SelectionManualAuto     Selection = 4
)

// OperatorStatus is the availability reported by +COPS=?.
type OperatorStatus int

const (
	OperatorUnknown   OperatorStatus = 0
	OperatorAvailable OperatorStatus = 1
	OperatorCurrent   OperatorStatus = 2
	OperatorDenied    OperatorStatus = 3
)

// Name formats of an operator.
const (
	NameLong    = 0
	NameShort   = 1
	NameNumeric = 2
)

const (
	maxOperators    = 4
	maxOperatorName = 15

	operNone    = -1
	operHome    = 0
	operRoaming = 1
)

// Operator is one network the modem can see.
type Operator struct {
	Status OperatorStatus
	Names  [3]string // long, short, numeric
}

func defaultOperators() [maxOperators]Operator {
	return [maxOperators]Operator{
		{Status: OperatorAvailable, Names: [3]string{"Android", "Android", "310260"}},
		{Status: OperatorAvailable, Names: [3]string{"TelKila", "TelKila", "310295"}},
	}
}

func (m *Modem) handleOperatorSelection(cmd string) string {
	arg := strings.TrimPrefix(cmd, "+COPS")

	switch {
	case arg == "?":
		if !m.hasNetwork() {
			return "+CME ERROR: 30"
		}
		oper := m.operators[m.operIndex]
		if m.operNameIndex == NameNumeric {
			return fmt.Sprintf("+COPS: %d,2,%s", m.selection, oper.Names[NameNumeric])
		}
		return fmt.Sprintf(`+COPS: %d,%d,"%s"`, m.selection, m.operNameIndex, oper.Names[m.operNameIndex])

	case arg == "=?":
		var b strings.Builder
		for i := 0; i < m.operCount && i < maxOperators; i++ {
			if i == 0 {
				b.WriteString("+COPS: ")
			} else {
				b.WriteString(", ")
			}
			o := m.operators[i]
			fmt.Fprintf(&b, `(%d,"%s","%s","%s")`, o.Status, o.Names[0], o.Names[1], o.Names[2])
		}
		return b.String()

	case arg == "=0":
		m.setSelection(SelectionAutomatic)
		m.setVoiceRegistration(RegHome)
		return "OK"

	case strings.HasPrefix(arg, "=1,"):
		return m.selectOperator(arg[3:])

	case arg == "=2":
		m.setSelection(SelectionDeregistration)
		return "OK"

	case strings.HasPrefix(arg, "=3,") && len(arg) == 4:
		format := int(arg[3] - '0')
		if format < 0 || format > NameNumeric {
			break
		}
		m.operNameIndex = format
		m.persistInt(nvOperNameIndex, format)
		return "OK"
	}
	return "ERROR: unknown command"
}

// selectOperator handles the `f,"name"` part of a manual selection.
func (m *Modem) selectOperator(args string) string {
	if len(args) < 3 || args[1] != ',' {
		return "ERROR: unknown command"
	}
	format := int(args[0] - '0')
	if format < 0 || format > NameNumeric {
		return "ERROR: unknown command"
	}
	name := args[2:]
	if strings.HasPrefix(name, `"`) {
		name = strings.TrimSuffix(name[1:], `"`)
	}
	if name == "" {
		return "ERROR: unknown command"
	}

	found := -1
	for i := 0; i < m.operCount && i < maxOperators; i++ {
		if m.operators[i].Names[format] == name {
			found = i
			break
		}
	}
	if found < 0 {
		return "+CME ERROR: 529"
	}
	if m.operators[found].Status == OperatorDenied {
		return "+CME ERROR: 32"
	}

	m.setSelection(SelectionManual)
	m.operIndex = found
	switch found {
	case operHome:
		m.dataState = RegHome
		m.setVoiceRegistration(RegHome)
	case operRoaming:
		m.dataState = RegRoaming
		m.setVoiceRegistration(RegRoaming)
	}
	return "OK"
}

func (m *Modem) setSelection(s Selection) {
	m.selection = s
	m.persistInt(nvSelectionMode, int(s))
}

// handleRequestOperator answers the combined three-format query the guest
// sends on every registration poll, one line per format.
func (m *Modem) handleRequestOperator(string) string {
	if !m.hasNetwork() {
		return "+CME ERROR: 30"
	}
	oper := m.operators[m.operIndex]
	m.operNameIndex = NameNumeric
	for format, name := range oper.Names {
		m.emit(fmt.Sprintf(`+COPS: 0,%d,"%s"`, format, name) + "\r")
	}
	m.reply("OK")
	return alreadyReplied
}

// Operator returns the operator at index.
func (m *Modem) Operator(index int) (Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= maxOperators {
		return Operator{}, fmt.Errorf("%w: operator index %d", ErrInvalidRange, index)
	}
	return m.operators[index], nil
}

// Operators returns the visible operators.
func (m *Modem) Operators() []Operator {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.operCount
	if n > maxOperators {
		n = maxOperators
	}
	return append([]Operator(nil), m.operators[:n]...)
}

// SetOperatorNames renames the operator at index. Empty names keep their
// current value; names are cut to 15 characters. Voice registration is
// re-announced so the guest picks up the new names.
func (m *Modem) SetOperatorNames(index int, long, short, numeric string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= maxOperators {
		return fmt.Errorf("%w: operator index %d", ErrInvalidRange, index)
	}
	for i, name := range []string{long, short, numeric} {
		if name == "" {
			continue
		}
		if len(name) > maxOperatorName {
			name = name[:maxOperatorName]
		}
		m.operators[index].Names[i] = name
	}
	m.setVoiceRegistration(m.voiceState)
	return nil
}
