package environments

type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
	Staging     Environment = "staging"
	Test        Environment = "test"
)

// Parse maps an APP_ENV value to a known environment. Empty means
// development, anything unrecognised is production.
func Parse(value string) Environment {
	switch Environment(value) {
	case Development, Staging, Test, Production:
		return Environment(value)
	case "":
		return Development
	default:
		return Production
	}
}

func (e Environment) IsProduction() bool {
	return e == Production
}
