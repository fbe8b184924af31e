package newport

import "fmt"

// UnitCodes maps the integer replies to SN? onto unit names.  The controller
// stores the unit system per axis; the driver only reports it, it does not
// convert between systems.
var UnitCodes = map[int]string{
	0:  "encoder count",
	1:  "motor step",
	2:  "millimeter",
	3:  "micrometer",
	4:  "inches",
	5:  "milli-inches",
	6:  "micro-inches",
	7:  "degree",
	8:  "gradian",
	9:  "radian",
	10: "milliradian",
	11: "microradian",
}

// UnitFromCode converts a unit code from the controller to its name.
func UnitFromCode(code int) (string, error) {
	name, ok := UnitCodes[code]
	if !ok {
		return "", fmt.Errorf("newport: unit code %d is not in the range 0..11", code)
	}
	return name, nil
}
