package shardmanager

type podAddressMsg struct {
	Host string
	Port int32
}

type registerRequest struct {
	Pod podAddressMsg
}

type unregisterRequest struct {
	Pod podAddressMsg
}

type getAssignmentsRequest struct{}

type assignmentEntry struct {
	Shard int32
	Pod   podAddressMsg
}

type getAssignmentsResponse struct {
	Assignments []assignmentEntry
}

type notifyUnhealthyRequest struct {
	Pod podAddressMsg
}

type ack struct{}
