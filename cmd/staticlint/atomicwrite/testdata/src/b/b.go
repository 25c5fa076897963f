package b

type fakeOS struct{}

func (fakeOS) WriteFile(name string, data []byte) error { return nil }

var os fakeOS

func save(fileName string, data []byte) error {
	return os.WriteFile(fileName, data)
}
