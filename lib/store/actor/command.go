package actor

// opCode is the kind of operation a command asks the actor to perform.
type opCode uint8

const (
	opGet opCode = iota
	opSet
)

func (o opCode) String() string {
	switch o {
	case opGet:
		return "get"
	case opSet:
		return "set"
	default:
		return "unknown"
	}
}

// result is the answer to a get command.
type result struct {
	value string
	found bool
}

// command is a single unit of work for the actor.
// reply is only set for get commands and must have a capacity of 1.
type command struct {
	op    opCode
	key   string
	value string
	reply chan<- result
}

func newGetCommand(key string, reply chan<- result) command {
	return command{op: opGet, key: key, reply: reply}
}

func newSetCommand(key, value string) command {
	return command{op: opSet, key: key, value: value}
}
