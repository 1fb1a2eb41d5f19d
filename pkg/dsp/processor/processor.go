// Package processor assembles typed DSP blocks into a validated chain and
// runs batches through it with per-block timing.
package processor

import (
	"fmt"
	"time"
)

type Processor struct {
	Name        string
	blocks      []*DSPWorker
	initialized bool
}

func NewProcessor(name string) *Processor {
	return &Processor{Name: name}
}

func (p *Processor) AddBlock(worker *DSPWorker) {
	p.blocks = append(p.blocks, worker)
}

// Initialize checks that adjacent blocks agree on data type and rate. It runs
// once, on the first batch.
func (p *Processor) Initialize() error {
	if p.initialized {
		return nil
	}
	if len(p.blocks) == 0 {
		return fmt.Errorf("%s: no blocks", p.Name)
	}
	cur := p.blocks[0]
	for i := 1; i < len(p.blocks); i++ {
		next := p.blocks[i]
		if cur.outputDataType != next.inputDataType {
			return fmt.Errorf("%s: %s -> %s data type mismatch (%d %d)",
				p.Name, cur.Name, next.Name, cur.outputDataType, next.inputDataType)
		}
		if cur.OutputRate != next.InputRate {
			return fmt.Errorf("%s: %s -> %s rate mismatch (%d %d)",
				p.Name, cur.Name, next.Name, cur.OutputRate, next.InputRate)
		}
		cur = next
	}
	p.initialized = true
	return nil
}

func (p *Processor) processData(cmplxInput []complex64, floatInput []float32,
	expectedInputType, expectedOutputType DataType, metrics map[string]interface{}) ([]complex64, []float32, error) {

	if p.blocks[0].inputDataType != expectedInputType {
		return nil, nil, fmt.Errorf("%s: input type %d, expected %d",
			p.Name, p.blocks[0].inputDataType, expectedInputType)
	}
	if last := p.blocks[len(p.blocks)-1]; last.outputDataType != expectedOutputType {
		return nil, nil, fmt.Errorf("%s: output type %d, expected %d",
			p.Name, last.outputDataType, expectedOutputType)
	}

	var cmplxOutput []complex64
	var floatOutput []float32

	for _, block := range p.blocks {
		var work func()

		switch block.inputDataType {
		case DataTypeComplex:
			switch block.outputDataType {
			case DataTypeComplex:
				if need := block.ccWorker.PredictOutputSize(len(cmplxInput)); len(block.cOutputBuffer) < need {
					block.cOutputBuffer = make([]complex64, need*2)
				}
				work = func() {
					length := block.ccWorker.WorkBuffer(cmplxInput, block.cOutputBuffer)
					cmplxOutput = block.cOutputBuffer[:length]
				}
			case DataTypeFloat:
				if need := block.cfWorker.PredictOutputSize(len(cmplxInput)); len(block.fOutputBuffer) < need {
					block.fOutputBuffer = make([]float32, need*2)
				}
				work = func() {
					length := block.cfWorker.WorkBuffer(cmplxInput, block.fOutputBuffer)
					floatOutput = block.fOutputBuffer[:length]
				}
			}
		case DataTypeFloat:
			if need := block.ffWorker.PredictOutputSize(len(floatInput)); len(block.fOutputBuffer) < need {
				block.fOutputBuffer = make([]float32, need*2)
			}
			work = func() {
				length := block.ffWorker.WorkBuffer(floatInput, block.fOutputBuffer)
				floatOutput = block.fOutputBuffer[:length]
			}
		}
		if work == nil {
			return nil, nil, fmt.Errorf("%s: block %s has no runnable type pairing", p.Name, block.Name)
		}

		start := time.Now()
		work()
		if metrics != nil {
			metrics[fmt.Sprintf("%s_duration", block.Name)] = time.Since(start).Microseconds()
		}

		cmplxInput = cmplxOutput
		floatInput = floatOutput
		cmplxOutput = nil
		floatOutput = nil
	}
	return cmplxInput, floatInput, nil
}

// ProcessComplex runs a complex-to-complex chain.
func (p *Processor) ProcessComplex(input []complex64, metrics map[string]interface{}) ([]complex64, error) {
	if err := p.Initialize(); err != nil {
		return nil, err
	}
	out, _, err := p.processData(input, nil, DataTypeComplex, DataTypeComplex, metrics)
	return out, err
}

// ProcessComplexToFloat runs a complex-in, float-out chain.
func (p *Processor) ProcessComplexToFloat(input []complex64, metrics map[string]interface{}) ([]float32, error) {
	if err := p.Initialize(); err != nil {
		return nil, err
	}
	_, out, err := p.processData(input, nil, DataTypeComplex, DataTypeFloat, metrics)
	return out, err
}
