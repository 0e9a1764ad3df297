// Package current emulates the output side of a sensor poller: every
// interval it evaluates the scenario for each sensor and writes the
// resulting document to current.json, optionally with a synthesized bus
// trace, exactly the way the real polling daemon would.
package current

import "fieldmock/internal/scenario"

// QuantityRecord is one measured quantity inside a sensor record. Value
// and Raw are null for sensors that did not answer.
type QuantityRecord struct {
	Value        *float64 `json:"value"`
	Raw          *int     `json:"raw"`
	Status       string   `json:"status"`
	ModbusStatus int      `json:"modbus_status"`
	Timestamp    string   `json:"timestamp"`
}

// SensorRecord is one sensor's slice of the poller document.
type SensorRecord struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	ModbusSlaveID  int             `json:"modbus_slave_id"`
	ModbusAddrTemp int             `json:"modbus_addr_temp"`
	ModbusAddrHum  int             `json:"modbus_addr_hum"`
	Temperature    QuantityRecord  `json:"temperature"`
	Humidity       QuantityRecord  `json:"humidity"`
	CombinedStatus scenario.Status `json:"combined_status"`
}

// PollStats carries the poller's cumulative bookkeeping.
type PollStats struct {
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	LastError  string `json:"last_error,omitempty"`
}

// MockInfo marks the document as synthetic so downstream consumers can
// tell it apart from real poller output.
type MockInfo struct {
	Generator string `json:"generator"`
	Scenario  string `json:"scenario"`
	Version   string `json:"version"`
}

// Document is the full poller output written to current.json each tick.
type Document struct {
	Timestamp    string         `json:"timestamp"`
	PollPeriodMS int            `json:"poll_period_ms"`
	ComPort      string         `json:"com_port"`
	Baudrate     int            `json:"baudrate"`
	Sensors      []SensorRecord `json:"sensors"`
	PollStats    PollStats      `json:"poll_stats"`
	Mock         MockInfo       `json:"_mock"`
}
