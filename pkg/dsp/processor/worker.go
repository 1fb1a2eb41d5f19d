package processor

type DataType int

const (
	DataTypeComplex DataType = iota
	DataTypeFloat
)

// CCWorker is a complex-in, complex-out DSP block.
type CCWorker interface {
	WorkBuffer([]complex64, []complex64) int
	PredictOutputSize(int) int
}

// CFWorker is a complex-in, float-out DSP block.
type CFWorker interface {
	WorkBuffer([]complex64, []float32) int
	PredictOutputSize(int) int
}

// FFWorker is a float-in, float-out DSP block.
type FFWorker interface {
	WorkBuffer([]float32, []float32) int
	PredictOutputSize(int) int
}

// DSPWorker wraps one typed block with its rates so a chain can be validated
// at assembly time.
type DSPWorker struct {
	Name       string
	InputRate  int
	OutputRate int

	inputDataType  DataType
	outputDataType DataType

	ccWorker CCWorker
	cfWorker CFWorker
	ffWorker FFWorker

	cOutputBuffer []complex64
	fOutputBuffer []float32
}

func baseWorker(name string, inputRate, outputRate int) *DSPWorker {
	return &DSPWorker{
		Name:       name,
		InputRate:  inputRate,
		OutputRate: outputRate,
	}
}

func NewCC(name string, inputRate, outputRate int, worker CCWorker) *DSPWorker {
	ret := baseWorker(name, inputRate, outputRate)
	ret.inputDataType = DataTypeComplex
	ret.outputDataType = DataTypeComplex
	ret.ccWorker = worker
	return ret
}

func NewCF(name string, inputRate, outputRate int, worker CFWorker) *DSPWorker {
	ret := baseWorker(name, inputRate, outputRate)
	ret.inputDataType = DataTypeComplex
	ret.outputDataType = DataTypeFloat
	ret.cfWorker = worker
	return ret
}

func NewFF(name string, inputRate, outputRate int, worker FFWorker) *DSPWorker {
	ret := baseWorker(name, inputRate, outputRate)
	ret.inputDataType = DataTypeFloat
	ret.outputDataType = DataTypeFloat
	ret.ffWorker = worker
	return ret
}
