package cache

import "fmt"

func sprintKey(k interface{}) string {
	return fmt.Sprintf("%v", k)
}
