package a

import (
	"os"
	"path/filepath"
)

func save(fileName string, data []byte) error {
	if err := os.WriteFile(fileName, data, 0644); err != nil { // want "os.WriteFile rewrites the file in place"
		return err
	}

	file, err := os.Create(fileName) // want "os.Create rewrites the file in place"
	if err != nil {
		return err
	}
	_ = file.Close()

	file, err = os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644) // want "os.OpenFile with O_TRUNC rewrites the file in place"
	if err != nil {
		return err
	}
	return file.Close()
}

func appendLine(fileName string, line []byte) error {
	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.Write(line)
	return err
}

func replace(fileName string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(fileName), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fileName)
}
