package rpc

// Operation names a backend operation exposed by the host.
type Operation string

const (
	OpPickClanDir             Operation = "get_clan_folder"
	OpCreateClan              Operation = "create_clan"
	OpGetClanDetails          Operation = "get_clan_details"
	OpSetClanDetails          Operation = "set_clan_details"
	OpListMachines            Operation = "list_machines"
	OpCreateMachine           Operation = "create_machine"
	OpSetMachine              Operation = "set_machine"
	OpDeleteMachine           Operation = "delete_machine"
	OpListMachineStates       Operation = "list_machine_states"
	OpCheckMachineSSH         Operation = "check_machine_ssh_login"
	OpGetHardwareSummary      Operation = "get_machine_hardware_summary"
	OpRunHardwareInfoInit     Operation = "run_machine_hardware_info_init"
	OpGetDiskSchemas          Operation = "get_machine_disk_schemas"
	OpSetDiskSchema           Operation = "set_machine_disk_schema"
	OpGetGenerators           Operation = "get_generators"
	OpGetPromptPreviousValues Operation = "get_generator_prompt_previous_values"
	OpRunGenerators           Operation = "run_generators"
	OpRunMachineInstall       Operation = "run_machine_install"
	OpRunMachineUpdate        Operation = "run_machine_update"
	OpListServiceModules      Operation = "list_service_modules"
	OpListServiceInstances    Operation = "list_service_instances"
	OpCreateServiceInstance   Operation = "create_service_instance"
	OpCancelTask              Operation = "cancel_task"
	OpDeleteTask              Operation = "delete_task"
)

var knownOperations = map[Operation]struct{}{
	OpPickClanDir:             {},
	OpCreateClan:              {},
	OpGetClanDetails:          {},
	OpSetClanDetails:          {},
	OpListMachines:            {},
	OpCreateMachine:           {},
	OpSetMachine:              {},
	OpDeleteMachine:           {},
	OpListMachineStates:       {},
	OpCheckMachineSSH:         {},
	OpGetHardwareSummary:      {},
	OpRunHardwareInfoInit:     {},
	OpGetDiskSchemas:          {},
	OpSetDiskSchema:           {},
	OpGetGenerators:           {},
	OpGetPromptPreviousValues: {},
	OpRunGenerators:           {},
	OpRunMachineInstall:       {},
	OpRunMachineUpdate:        {},
	OpListServiceModules:      {},
	OpListServiceInstances:    {},
	OpCreateServiceInstance:   {},
	OpCancelTask:              {},
	OpDeleteTask:              {},
}

// Known reports whether op is part of the operation set this client speaks.
func (op Operation) Known() bool {
	_, ok := knownOperations[op]
	return ok
}

func (op Operation) String() string { return string(op) }
