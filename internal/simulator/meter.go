package simulator

import (
	"math/rand"
	"time"

	"modbus-master/pdu"
)

// MeterPoint 電表暫存器定義
type MeterPoint struct {
	Address  uint16
	Name     string
	DataType pdu.DataType
	Scale    float64
	Unit     string
}

// PowerMeterPoints 電表暫存器配置 (保持暫存器，位址由 0 起算)
var PowerMeterPoints = []MeterPoint{
	{Address: 0, Name: "LineVoltage", DataType: pdu.DataTypeUint16, Scale: 10, Unit: "V"},
	{Address: 1, Name: "LineCurrent", DataType: pdu.DataTypeUint16, Scale: 100, Unit: "A"},
	{Address: 2, Name: "Frequency", DataType: pdu.DataTypeUint16, Scale: 100, Unit: "Hz"},
	{Address: 3, Name: "TotalEnergy", DataType: pdu.DataTypeUint32, Scale: 1, Unit: "kWh"},
	{Address: 5, Name: "PowerFactor", DataType: pdu.DataTypeUint16, Scale: 1000, Unit: ""},
	{Address: 6, Name: "ActivePower", DataType: pdu.DataTypeUint32, Scale: 10, Unit: "W"},
}

// PowerMeter 在保持暫存器上模擬電表量測值，小幅波動並累積能量
type PowerMeter struct {
	Interval time.Duration

	baseVoltage   float64
	baseCurrent   float64
	baseFrequency float64
	powerFactor   float64
	energy        float64
	lastUpdate    time.Time
	rnd           *rand.Rand
}

// NewPowerMeter 建立電表
func NewPowerMeter(interval time.Duration) *PowerMeter {
	return &PowerMeter{
		Interval:      interval,
		baseVoltage:   220.0,
		baseCurrent:   15.5,
		baseFrequency: 60.0,
		powerFactor:   0.95,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Reset 寫入基準值
func (m *PowerMeter) Reset(registers []uint16) {
	m.energy = 0
	m.lastUpdate = time.Now()
	m.write(registers, m.baseVoltage, m.baseCurrent, m.baseFrequency)
}

// Update 電壓 ±0.5%、頻率 ±0.05%、電流 ±2% 波動
func (m *PowerMeter) Update(registers []uint16) {
	voltage := m.baseVoltage * (1 + (m.rnd.Float64()*2-1)*0.005)
	frequency := m.baseFrequency * (1 + (m.rnd.Float64()*2-1)*0.0005)
	current := m.baseCurrent * (1 + (m.rnd.Float64()*2-1)*0.02)

	m.write(registers, voltage, current, frequency)
}

func (m *PowerMeter) write(registers []uint16, voltage, current, frequency float64) {
	power := voltage * current * m.powerFactor

	// 累積能量
	elapsed := time.Since(m.lastUpdate).Hours()
	m.energy += power * elapsed / 1000 // kWh
	m.lastUpdate = time.Now()

	values := map[string]float64{
		"LineVoltage": voltage,
		"LineCurrent": current,
		"Frequency":   frequency,
		"TotalEnergy": m.energy,
		"PowerFactor": m.powerFactor,
		"ActivePower": power,
	}

	for _, p := range PowerMeterPoints {
		regs, err := pdu.EncodeValue(values[p.Name], p.DataType, pdu.WordOrderBigEndian, p.Scale)
		if err != nil {
			continue
		}
		copy(registers[p.Address:], regs)
	}
}
