package modbus

import (
	"fmt"
	"math/rand"
	"time"

	mb "github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// ServerSettings configures the Modbus TCP listener.
type ServerSettings struct {
	Port   int
	UnitID uint8
}

// Server fronts a RegisterMap over Modbus TCP. Every served read is
// recorded in the request log with a simulated 5-30 ms line latency so
// the trace looks like a real serial link.
type Server struct {
	settings  ServerSettings
	registers *RegisterMap
	reqLog    *RequestLog
	logger    *zap.SugaredLogger
	srv       *mb.ModbusServer
}

// NewServer builds a stopped server.
func NewServer(settings ServerSettings, registers *RegisterMap, reqLog *RequestLog, logger *zap.SugaredLogger) *Server {
	return &Server{
		settings:  settings,
		registers: registers,
		reqLog:    reqLog,
		logger:    logger,
	}
}

// Start binds the TCP listener.
func (s *Server) Start() error {
	srv, err := mb.NewServer(&mb.ServerConfiguration{
		URL:        fmt.Sprintf("tcp://0.0.0.0:%d", s.settings.Port),
		Timeout:    30 * time.Second,
		MaxClients: 5,
	}, &handler{
		unitID:    s.settings.UnitID,
		registers: s.registers,
		reqLog:    s.reqLog,
		logger:    s.logger,
	})
	if err != nil {
		return fmt.Errorf("configure modbus server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("listen on port %d: %w", s.settings.Port, err)
	}
	s.srv = srv
	return nil
}

// Stop closes the listener. Safe to call when never started.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.Stop()
	s.srv = nil
	return err
}

// handler serves register reads from the map and records each exchange.
type handler struct {
	unitID    uint8
	registers *RegisterMap
	reqLog    *RequestLog
	logger    *zap.SugaredLogger
}

// HandleCoils implements mb.RequestHandler. The emulated device exposes
// no coils.
func (h *handler) HandleCoils(req *mb.CoilsRequest) ([]bool, error) {
	return nil, mb.ErrIllegalFunction
}

// HandleDiscreteInputs implements mb.RequestHandler.
func (h *handler) HandleDiscreteInputs(req *mb.DiscreteInputsRequest) ([]bool, error) {
	return nil, mb.ErrIllegalFunction
}

// HandleHoldingRegisters implements mb.RequestHandler. Reads serve the
// status block; writes are allowed so clients can poke registers.
func (h *handler) HandleHoldingRegisters(req *mb.HoldingRegistersRequest) ([]uint16, error) {
	if req.UnitId != h.unitID {
		return nil, mb.ErrGWTargetFailedToRespond
	}
	if req.IsWrite {
		for i, v := range req.Args {
			h.registers.Set(req.Addr+uint16(i), v)
		}
		return req.Args, nil
	}
	return h.read(FuncReadHoldingRegisters, req.Addr, req.Quantity)
}

// HandleInputRegisters implements mb.RequestHandler. Serves the value
// block.
func (h *handler) HandleInputRegisters(req *mb.InputRegistersRequest) ([]uint16, error) {
	if req.UnitId != h.unitID {
		return nil, mb.ErrGWTargetFailedToRespond
	}
	return h.read(FuncReadInputRegisters, req.Addr, req.Quantity)
}

func (h *handler) read(function uint8, addr, quantity uint16) ([]uint16, error) {
	// Simulated line latency; a TCP-attached emulator answers too fast
	// to look like a field bus otherwise.
	latency := 5 + rand.Float64()*25
	time.Sleep(time.Duration(latency * float64(time.Millisecond)))

	txFrame := ReadRequestFrame(h.unitID, function, addr, quantity)
	h.reqLog.Append(LogEntry{
		Timestamp: time.Now(),
		Direction: DirTX,
		RawHex:    FrameHex(txFrame),
		Parsed: ParsedFrame{
			SlaveID:     h.unitID,
			Function:    function,
			StartAddr:   addr,
			Quantity:    quantity,
			Description: fmt.Sprintf("read %d registers from %d", quantity, addr),
		},
	})

	values, ok := h.registers.ReadBlock(addr, quantity)
	if !ok {
		exFrame := ExceptionFrame(h.unitID, function, 0x02)
		h.reqLog.Append(LogEntry{
			Timestamp: time.Now(),
			Direction: DirRX,
			RawHex:    FrameHex(exFrame),
			Parsed: ParsedFrame{
				SlaveID:     h.unitID,
				Function:    function,
				Description: "exception: illegal data address",
			},
			ResponseTimeMS: latency,
			Error:          "illegal data address",
		})
		return nil, mb.ErrIllegalDataAddress
	}

	rxFrame := ReadResponseFrame(h.unitID, function, values)
	h.reqLog.Append(LogEntry{
		Timestamp: time.Now(),
		Direction: DirRX,
		RawHex:    FrameHex(rxFrame),
		Parsed: ParsedFrame{
			SlaveID:     h.unitID,
			Function:    function,
			ByteCount:   len(values) * 2,
			Values:      values,
			Description: fmt.Sprintf("%d register values", len(values)),
		},
		ResponseTimeMS: latency,
	})
	return values, nil
}
