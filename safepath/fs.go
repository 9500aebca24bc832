package safepath

import "os"

func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func isNotExist(err error) bool {
	return os.IsNotExist(err)
}
